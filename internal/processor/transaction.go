package processor

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

type Kind uint8

const (
	KindInitializeChallenge Kind = iota + 1
	KindStakeTokens
	KindDistributeReward
)

var kindNames = map[Kind]string{
	KindInitializeChallenge: "initialize_challenge",
	KindStakeTokens:         "stake_tokens",
	KindDistributeReward:    "distribute_reward",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInstruction, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Instruction is one call into the challenge program. Fields that do not
// apply to Kind stay zero.
type Instruction struct {
	Kind        Kind           `json:"kind"`
	ChallengeID string         `json:"challenge_id,omitempty"`
	Amount      uint64         `json:"amount"`
	Challenge   crypto.Address `json:"challenge"`
	Winner      crypto.Address `json:"winner"`
}

// InitializeChallenge creates the challenge challengeID declaring stakeAmount.
func InitializeChallenge(challengeID string, stakeAmount uint64) Instruction {
	return Instruction{Kind: KindInitializeChallenge, ChallengeID: challengeID, Amount: stakeAmount}
}

// StakeTokens moves amount from the signer into the challenge pool.
func StakeTokens(challenge crypto.Address, amount uint64) Instruction {
	return Instruction{Kind: KindStakeTokens, Challenge: challenge, Amount: amount}
}

// DistributeReward pays amount from the challenge pool to winner.
func DistributeReward(challenge, winner crypto.Address, amount uint64) Instruction {
	return Instruction{Kind: KindDistributeReward, Challenge: challenge, Winner: winner, Amount: amount}
}

// Transaction is an instruction authenticated by its single signer.
type Transaction struct {
	Nonce       uuid.UUID               `json:"nonce"`
	Signer      crypto.Address          `json:"signer"`
	Instruction Instruction             `json:"instruction"`
	Signature   crypto.Ed25519Signature `json:"signature"`
}

// NewTransaction signs ix with key under a fresh nonce.
func NewTransaction(key ed25519.PrivateKey, ix Instruction) (Transaction, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return Transaction{}, fmt.Errorf("generate nonce: %w", err)
	}
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return Transaction{}, fmt.Errorf("unexpected public key type %T", key.Public())
	}
	tx := Transaction{
		Nonce:       nonce,
		Signer:      crypto.AddressFromPublicKey(pub),
		Instruction: ix,
	}
	hash := tx.Hash()
	copy(tx.Signature[:], ed25519.Sign(key, hash[:]))
	return tx, nil
}

const signingDomain = "accountability/tx/v0"

// Hash commits to everything except the signature. It is the signed message.
func (tx Transaction) Hash() crypto.Hash {
	ix := tx.Instruction
	buf := make([]byte, 0, len(signingDomain)+16+crypto.AddressSize+1+4+len(ix.ChallengeID)+8+2*crypto.AddressSize)
	buf = append(buf, signingDomain...)
	buf = append(buf, tx.Nonce[:]...)
	buf = append(buf, tx.Signer[:]...)
	buf = append(buf, byte(ix.Kind))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.ChallengeID)))
	buf = append(buf, ix.ChallengeID...)
	buf = binary.LittleEndian.AppendUint64(buf, ix.Amount)
	buf = append(buf, ix.Challenge[:]...)
	buf = append(buf, ix.Winner[:]...)
	return crypto.HashData(buf)
}

// Verify checks the signature against the signer's key.
func (tx Transaction) Verify() error {
	hash := tx.Hash()
	if !ed25519.Verify(tx.Signer.PublicKey(), hash[:], tx.Signature[:]) {
		return ErrBadSignature
	}
	return nil
}
