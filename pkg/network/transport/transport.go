package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/pkg/log"
	"github.com/eigerco/accountability/pkg/network/cert"
)

// ALPN is the only application protocol spoken by nodes.
const ALPN = "accountability/0"

// MaxIdleTimeout defines the maximum duration a connection can be idle before timing out
const MaxIdleTimeout = 5 * time.Minute

// StreamTimeout bounds serving a single request.
const StreamTimeout = 30 * time.Second

// Stream error codes sent when a request cannot be answered.
const (
	codeRequestFailed quic.StreamErrorCode = 1
)

// Handler answers one request of the given kind from peer.
type Handler interface {
	Serve(ctx context.Context, peer crypto.Address, kind byte, payload []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, peer crypto.Address, kind byte, payload []byte) ([]byte, error)

func (f HandlerFunc) Serve(ctx context.Context, peer crypto.Address, kind byte, payload []byte) ([]byte, error) {
	return f(ctx, peer, kind, payload)
}

// Config contains all configuration parameters for a Server
type Config struct {
	ListenAddr string
	TLSCert    *tls.Certificate
	Handler    Handler
}

func quicConfig() *quic.Config {
	return &quic.Config{MaxIdleTimeout: MaxIdleTimeout}
}

func tlsConfig(c *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{*c},
		NextProtos:            []string{ALPN},
		ClientAuth:            tls.RequireAnyClientCert,
		MinVersion:            tls.VersionTLS13,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: cert.VerifyPeer,
	}
}

// Server accepts QUIC connections and serves each stream as one request.
type Server struct {
	config   Config
	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[quic.Connection]struct{}
}

// NewServer checks the configuration. Start begins listening.
func NewServer(config Config) (*Server, error) {
	if config.TLSCert == nil || config.TLSCert.Leaf == nil {
		return nil, fmt.Errorf("TLS certificate required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	if _, err := cert.Validate(config.TLSCert.Leaf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return &Server{config: config, conns: make(map[quic.Connection]struct{})}, nil
}

// Start opens the listener and accepts connections in the background.
func (s *Server) Start() error {
	listener, err := quic.ListenAddr(s.config.ListenAddr, tlsConfig(s.config.TLSCert), quicConfig())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	log.Network.Info().Stringer("addr", listener.Addr()).Msg("listening")
	return nil
}

// Addr is the bound listen address. It is only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and every connection, then waits for in-flight
// requests to finish.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		if err := conn.CloseWithError(0, "server stopped"); err != nil {
			log.Network.Debug().Err(err).Msg("close connection")
		}
	}
	s.mu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				log.Network.Warn().Err(err).Msg("accept connection")
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) track(conn quic.Connection, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func peerAddress(conn quic.Connection) (crypto.Address, error) {
	certs := conn.ConnectionState().TLS.PeerCertificates
	if len(certs) == 0 {
		return crypto.Address{}, fmt.Errorf("%w: %w", ErrInvalidCertificate, cert.ErrNoPeerCertificate)
	}
	addr, err := cert.Validate(certs[0])
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return addr, nil
}

func (s *Server) handleConnection(conn quic.Connection) {
	peer, err := peerAddress(conn)
	if err != nil {
		log.Network.Warn().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("rejecting connection")
		_ = conn.CloseWithError(1, err.Error())
		return
	}
	s.track(conn, true)
	defer s.track(conn, false)

	logger := log.Network.With().Stringer("peer", peer).Logger()
	logger.Debug().Stringer("remote", conn.RemoteAddr()).Msg("connection accepted")

	for {
		stream, err := conn.AcceptStream(s.ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("connection closed")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.serveStream(peer, stream); err != nil {
				logger.Info().Err(err).Msg("request failed")
			}
		}()
	}
}

// serveStream reads the kind byte and request, and writes the response.
func (s *Server) serveStream(peer crypto.Address, stream quic.Stream) error {
	ctx, cancel := context.WithTimeout(s.ctx, StreamTimeout)
	defer cancel()
	if err := stream.SetDeadline(time.Now().Add(StreamTimeout)); err != nil {
		return err
	}

	fail := func(err error) error {
		stream.CancelRead(codeRequestFailed)
		stream.CancelWrite(codeRequestFailed)
		return err
	}

	var kind [1]byte
	if _, err := io.ReadFull(stream, kind[:]); err != nil {
		return fail(fmt.Errorf("failed to read request kind: %w", err))
	}
	payload, err := ReadMessage(stream)
	if err != nil {
		return fail(err)
	}
	resp, err := s.config.Handler.Serve(ctx, peer, kind[0], payload)
	if err != nil {
		return fail(err)
	}
	if err := WriteMessage(stream, resp); err != nil {
		return fail(err)
	}
	return stream.Close()
}
