package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/processor"
	"github.com/eigerco/accountability/pkg/log"
	"github.com/eigerco/accountability/pkg/network/transport"
)

// Processor is what Handler serves requests from.
type Processor interface {
	Submit(ctx context.Context, tx processor.Transaction) (processor.Receipt, error)
	Balance(addr crypto.Address) (uint64, error)
	Challenge(addr crypto.Address) (challenge.Challenge, uint64, error)
	ChallengeAddress(challengeID string) crypto.Address
	Airdrop(ctx context.Context, addr crypto.Address, amount uint64) (uint64, error)
	TotalSupply() (uint64, error)
}

var _ transport.Handler = (*Handler)(nil)

// Handler decodes requests, calls the processor and encodes the result.
// Failures are returned to the caller inside the response.
type Handler struct {
	proc Processor
}

func NewHandler(p Processor) *Handler {
	return &Handler{proc: p}
}

func (h *Handler) Serve(ctx context.Context, peer crypto.Address, kind byte, payload []byte) ([]byte, error) {
	result, err := h.dispatch(ctx, Kind(kind), payload)

	event := log.Network.Debug()
	if err != nil {
		event = log.Network.Info().Err(err)
	}
	event.Stringer("peer", peer).Stringer("request", Kind(kind)).Msg("rpc")

	var env envelope
	if err != nil {
		env.Error = toWire(err)
	} else {
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			return nil, fmt.Errorf("encode %s response: %w", Kind(kind), mErr)
		}
		env.Result = raw
	}
	return json.Marshal(env)
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, kind Kind, payload []byte) (any, error) {
	switch kind {
	case KindSubmit:
		var req SubmitRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		receipt, err := h.proc.Submit(ctx, req.Transaction)
		if err != nil {
			return nil, err
		}
		return SubmitResponse{Receipt: receipt}, nil

	case KindBalance:
		var req BalanceRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		balance, err := h.proc.Balance(req.Address)
		if err != nil {
			return nil, err
		}
		return BalanceResponse{Address: req.Address, Balance: balance}, nil

	case KindChallenge:
		var req ChallengeRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		addr := req.Address
		if req.ChallengeID != "" {
			addr = h.proc.ChallengeAddress(req.ChallengeID)
		}
		c, balance, err := h.proc.Challenge(addr)
		if err != nil {
			return nil, err
		}
		return ChallengeResponse{Address: addr, Challenge: c, Balance: balance}, nil

	case KindAirdrop:
		var req AirdropRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		balance, err := h.proc.Airdrop(ctx, req.Address, req.Amount)
		if err != nil {
			return nil, err
		}
		return AirdropResponse{Address: req.Address, Balance: balance}, nil

	case KindSupply:
		total, err := h.proc.TotalSupply()
		if err != nil {
			return nil, err
		}
		return SupplyResponse{TotalSupply: total}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, byte(kind))
	}
}
