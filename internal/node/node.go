// Package node assembles a running node from its configuration.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/config"
	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
	"github.com/eigerco/accountability/internal/processor"
	"github.com/eigerco/accountability/internal/rpc"
	"github.com/eigerco/accountability/internal/state"
	"github.com/eigerco/accountability/pkg/db/pebble"
	"github.com/eigerco/accountability/pkg/log"
	"github.com/eigerco/accountability/pkg/network/cert"
	"github.com/eigerco/accountability/pkg/network/transport"
)

// Node owns the store, the processor and the servers in front of it.
type Node struct {
	config    config.Config
	address   crypto.Address
	state     *state.State
	processor *processor.Processor
	server    *transport.Server
	registry  *prometheus.Registry
	metrics   *http.Server
	metricsLn net.Listener
}

// New opens the store, applies genesis on first start and prepares the
// servers. Nothing is listening until Start.
func New(cfg config.Config, key ed25519.PrivateKey) (*Node, error) {
	fees, err := cfg.FeeSchedule()
	if err != nil {
		return nil, err
	}
	genesis, err := cfg.GenesisBalances()
	if err != nil {
		return nil, err
	}

	var opts []pebble.Option
	if cfg.DataDir != "" {
		opts = append(opts, pebble.WithPath(cfg.DataDir))
	}
	kv, err := pebble.NewKVStore(opts...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := state.New(kv, fees)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	proc := processor.New(s, challenge.NewEngine(challenge.ProgramID),
		processor.WithFaucet(cfg.Faucet),
		processor.WithMetrics(processor.NewMetrics(registry)),
	)
	if err := proc.ApplyGenesis(genesis); err != nil && !errors.Is(err, processor.ErrGenesisApplied) {
		_ = s.Close()
		return nil, err
	} else if err == nil {
		log.Store.Info().Int("accounts", len(genesis)).Msg("initialized new state")
	}

	tlsCert, err := cert.Generate(key, 0)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	server, err := transport.NewServer(transport.Config{
		ListenAddr: cfg.ListenAddr,
		TLSCert:    tlsCert,
		Handler:    rpc.NewHandler(proc),
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return &Node{
		config:    cfg,
		address:   crypto.AddressFromPublicKey(key.Public().(ed25519.PublicKey)),
		state:     s,
		processor: proc,
		server:    server,
		registry:  registry,
	}, nil
}

func (n *Node) Processor() *processor.Processor {
	return n.processor
}

// Address is the node's identity as presented in its TLS certificate.
func (n *Node) Address() crypto.Address {
	return n.address
}

// ListenAddr is the bound QUIC address once started.
func (n *Node) ListenAddr() net.Addr {
	return n.server.Addr()
}

// Start begins serving requests and, when configured, metrics.
func (n *Node) Start() error {
	if err := n.server.Start(); err != nil {
		return err
	}
	if n.config.MetricsAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", n.config.MetricsAddr)
	if err != nil {
		_ = n.server.Stop()
		return fmt.Errorf("listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
	n.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	n.metricsLn = ln
	go func() {
		if err := n.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Root.Error().Err(err).Msg("metrics server")
		}
	}()
	log.Root.Info().Stringer("addr", ln.Addr()).Msg("serving metrics")
	return nil
}

// MetricsAddr is the bound metrics address, or nil when metrics are off.
func (n *Node) MetricsAddr() net.Addr {
	if n.metricsLn == nil {
		return nil
	}
	return n.metricsLn.Addr()
}

// Run starts the node and blocks until ctx is done, then stops it.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}
	log.Root.Info().Stringer("node", n.address).Stringer("addr", n.ListenAddr()).Msg("node started")
	<-ctx.Done()
	return n.Stop()
}

// Stop shuts the servers down and closes the store.
func (n *Node) Stop() error {
	var errs []error
	if n.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, n.metrics.Shutdown(ctx))
		cancel()
	}
	errs = append(errs, n.server.Stop(), n.state.Close())
	log.Root.Info().Msg("node stopped")
	return errors.Join(errs...)
}
