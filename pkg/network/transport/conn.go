package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/accountability/internal/crypto"
)

// Conn is a client connection to a node.
type Conn struct {
	qConn quic.Connection
	peer  crypto.Address
}

// Dial connects to the node at addr, authenticating with c.
func Dial(ctx context.Context, addr string, c *tls.Certificate) (*Conn, error) {
	qConn, err := quic.DialAddr(ctx, addr, tlsConfig(c), quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	peer, err := peerAddress(qConn)
	if err != nil {
		_ = qConn.CloseWithError(1, err.Error())
		return nil, err
	}
	return &Conn{qConn: qConn, peer: peer}, nil
}

// Peer is the address the node authenticated as.
func (c *Conn) Peer() crypto.Address {
	return c.peer
}

// Call sends one request on a fresh stream and waits for its response.
func (c *Conn) Call(ctx context.Context, kind byte, payload []byte) ([]byte, error) {
	stream, err := c.qConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := stream.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	if _, err := stream.Write([]byte{kind}); err != nil {
		stream.CancelRead(codeRequestFailed)
		return nil, fmt.Errorf("failed to write request kind: %w", err)
	}
	if err := WriteMessageWithContext(ctx, stream, payload); err != nil {
		stream.CancelRead(codeRequestFailed)
		return nil, err
	}
	if err := stream.Close(); err != nil {
		return nil, err
	}

	resp, err := ReadMessageWithContext(ctx, stream)
	if err != nil {
		stream.CancelRead(codeRequestFailed)
		var streamErr *quic.StreamError
		if errors.As(err, &streamErr) && streamErr.ErrorCode == codeRequestFailed {
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Conn) Close() error {
	return c.qConn.CloseWithError(0, "")
}
