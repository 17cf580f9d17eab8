package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
	"github.com/eigerco/accountability/internal/processor"
	"github.com/eigerco/accountability/pkg/network/cert"
	"github.com/eigerco/accountability/pkg/network/transport"
)

// Caller sends one request and returns the raw response.
type Caller interface {
	Call(ctx context.Context, kind byte, payload []byte) ([]byte, error)
}

// Client issues typed requests to a node.
type Client struct {
	caller Caller
	closer func() error
}

func NewClient(c Caller) *Client {
	return &Client{caller: c}
}

// Dial connects to the node at addr, authenticating the connection with key.
func Dial(ctx context.Context, addr string, key ed25519.PrivateKey) (*Client, error) {
	tlsCert, err := cert.Generate(key, time.Hour)
	if err != nil {
		return nil, err
	}
	conn, err := transport.Dial(ctx, addr, tlsCert)
	if err != nil {
		return nil, err
	}
	return &Client{caller: conn, closer: conn.Close}, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) call(ctx context.Context, kind Kind, req, resp any) error {
	payload := []byte("{}")
	if req != nil {
		var err error
		if payload, err = json.Marshal(req); err != nil {
			return fmt.Errorf("encode %s request: %w", kind, err)
		}
	}
	raw, err := c.caller.Call(ctx, byte(kind), payload)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", kind, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if err := json.Unmarshal(env.Result, resp); err != nil {
		return fmt.Errorf("decode %s result: %w", kind, err)
	}
	return nil
}

// Submit sends a signed transaction and returns its receipt once committed.
func (c *Client) Submit(ctx context.Context, tx processor.Transaction) (processor.Receipt, error) {
	var resp SubmitResponse
	if err := c.call(ctx, KindSubmit, SubmitRequest{Transaction: tx}, &resp); err != nil {
		return processor.Receipt{}, err
	}
	return resp.Receipt, nil
}

func (c *Client) Balance(ctx context.Context, addr crypto.Address) (uint64, error) {
	var resp BalanceResponse
	if err := c.call(ctx, KindBalance, BalanceRequest{Address: addr}, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) Challenge(ctx context.Context, addr crypto.Address) (ChallengeResponse, error) {
	var resp ChallengeResponse
	err := c.call(ctx, KindChallenge, ChallengeRequest{Address: addr}, &resp)
	return resp, err
}

func (c *Client) ChallengeByID(ctx context.Context, challengeID string) (ChallengeResponse, error) {
	var resp ChallengeResponse
	err := c.call(ctx, KindChallenge, ChallengeRequest{ChallengeID: challengeID}, &resp)
	return resp, err
}

// Airdrop asks the node's faucet for amount and returns the new balance.
func (c *Client) Airdrop(ctx context.Context, addr crypto.Address, amount uint64) (uint64, error) {
	var resp AirdropResponse
	if err := c.call(ctx, KindAirdrop, AirdropRequest{Address: addr, Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) TotalSupply(ctx context.Context) (uint64, error) {
	var resp SupplyResponse
	if err := c.call(ctx, KindSupply, nil, &resp); err != nil {
		return 0, err
	}
	return resp.TotalSupply, nil
}
