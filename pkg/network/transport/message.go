package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single request or response payload.
const MaxMessageSize = 1 << 20

// WriteMessage writes content prefixed by its length as a little-endian uint32.
func WriteMessage(w io.Writer, content []byte) error {
	if len(content) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(content))
	}
	buf := make([]byte, 4, 4+len(content))
	binary.LittleEndian.PutUint32(buf, uint32(len(content)))
	buf = append(buf, content...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message. Sizes above MaxMessageSize
// are rejected before anything is allocated.
func ReadMessage(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, fmt.Errorf("failed to read message size: %w", err)
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	content := make([]byte, n)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	return content, nil
}

type readResult struct {
	content []byte
	err     error
}

// ReadMessageWithContext is ReadMessage that gives up when ctx is done. The
// reader is left in an undefined state on cancellation.
func ReadMessageWithContext(ctx context.Context, r io.Reader) ([]byte, error) {
	done := make(chan readResult, 1)
	go func() {
		content, err := ReadMessage(r)
		done <- readResult{content, err}
	}()

	select {
	case res := <-done:
		return res.content, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteMessageWithContext is WriteMessage that gives up when ctx is done.
func WriteMessageWithContext(ctx context.Context, w io.Writer, content []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- WriteMessage(w, content)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
