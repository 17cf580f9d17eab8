package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/processor"
)

// Kind is the first byte of every request stream.
type Kind byte

const (
	KindSubmit Kind = iota + 1
	KindBalance
	KindChallenge
	KindAirdrop
	KindSupply
)

func (k Kind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindBalance:
		return "balance"
	case KindChallenge:
		return "challenge"
	case KindAirdrop:
		return "airdrop"
	case KindSupply:
		return "supply"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

type SubmitRequest struct {
	Transaction processor.Transaction `json:"transaction"`
}

type SubmitResponse struct {
	Receipt processor.Receipt `json:"receipt"`
}

type BalanceRequest struct {
	Address crypto.Address `json:"address"`
}

type BalanceResponse struct {
	Address crypto.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// ChallengeRequest looks a record up by address, or by challenge id when
// ChallengeID is set.
type ChallengeRequest struct {
	Address     crypto.Address `json:"address"`
	ChallengeID string         `json:"challenge_id,omitempty"`
}

type ChallengeResponse struct {
	Address   crypto.Address      `json:"address"`
	Challenge challenge.Challenge `json:"challenge"`
	Balance   uint64              `json:"balance"`
}

type AirdropRequest struct {
	Address crypto.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

type AirdropResponse struct {
	Address crypto.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

type SupplyResponse struct {
	TotalSupply uint64 `json:"total_supply"`
}

// envelope wraps every response. Exactly one of Result and Error is set.
type envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}
