// Package nodeservice wires the full carbonchain node from a parsed
// Config: storage, the node binding, the optional mining loop, and the
// debug/public/private HTTP servers, down to a graceful shutdown on
// SIGINT/SIGTERM. It exists as its own package, separate from
// app/services/node/main.go, so both that conf-driven binary and the
// cmd/carbonchaind operator CLI can share one run loop instead of
// duplicating it.
package nodeservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carbonchain/node/app/services/node/handlers"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/miner"
	"github.com/carbonchain/node/foundation/blockchain/storage/leveldb"
	"github.com/carbonchain/node/foundation/events"
	"github.com/carbonchain/node/foundation/node"
	"go.uber.org/zap"
)

// Config bundles everything a node process needs, independent of how the
// caller obtained it (ardanlabs/conf environment parsing, or cobra flags).
type Config struct {
	Build string

	Web struct {
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		IdleTimeout     time.Duration
		ShutdownTimeout time.Duration
		DebugHost       string
		PublicHost      string
		PrivateHost     string
	}

	Node struct {
		GenesisPath  string
		DBPath       string
		Mine         bool
		MinerAddress string
	}
}

// DefaultConfig returns a Config carrying the same defaults the
// conf-tagged struct documents, for callers (the cmd/carbonchaind flags)
// that want the identical baseline without re-declaring it.
func DefaultConfig(build string) Config {
	var cfg Config
	cfg.Build = build
	cfg.Web.ReadTimeout = 5 * time.Second
	cfg.Web.WriteTimeout = 10 * time.Second
	cfg.Web.IdleTimeout = 120 * time.Second
	cfg.Web.ShutdownTimeout = 20 * time.Second
	cfg.Web.DebugHost = "0.0.0.0:7080"
	cfg.Web.PublicHost = "0.0.0.0:8080"
	cfg.Web.PrivateHost = "0.0.0.0:9080"
	cfg.Node.GenesisPath = "zblock/genesis.json"
	cfg.Node.DBPath = "zblock/chain.db"
	return cfg
}

// Run loads genesis, opens storage, starts the optional mining loop, and
// serves the debug/public/private HTTP muxes until a signal or server
// error ends it.
func Run(log *zap.SugaredLogger, cfg Config) error {
	log.Infow("starting service", "version", cfg.Build)
	defer log.Infow("shutdown complete")

	// =========================================================================
	// Genesis & storage

	params, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	genesisBlock, err := params.Block()
	if err != nil {
		return fmt.Errorf("building genesis block: %w", err)
	}

	store, err := leveldb.Open(cfg.Node.DBPath)
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer store.Close()

	// =========================================================================
	// Node

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	nd, err := node.New(node.Config{
		Genesis:        genesisBlock,
		GenesisBits:    params.GenesisBits,
		AddressVersion: params.AddressVersion,
		PoWAlgorithm:   params.PoWAlgorithm,
		Store:          store,
		Events:         evts,
		Log:            ev,
	})
	if err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	// =========================================================================
	// Optional mining loop

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancelMining := context.WithCancel(context.Background())
	defer cancelMining()

	if cfg.Node.Mine {
		if cfg.Node.MinerAddress == "" {
			return errors.New("node.mine requires node.miner-address")
		}

		mnr := miner.New(miner.Config{
			Mempool:            nd.Mempool(),
			BeneficiaryAddress: cfg.Node.MinerAddress,
			PoWAlgorithm:       params.PoWAlgorithm,
			EventHandler:       miner.EventHandler(ev),
		})

		go runMiningLoop(ctx, nd, mnr, ev)
	}

	// =========================================================================
	// Start debug service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(cfg.Build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start public/private services

	serverErrors := make(chan error, 1)

	log.Infow("startup", "status", "initializing v1 public API support")
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Node:     nd,
		Evts:     evts,
	})
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	log.Infow("startup", "status", "initializing v1 private API support")
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Node:     nd,
	})
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		cancelMining()

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctxPri, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctxPri); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctxPub, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctxPub); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// runMiningLoop repeatedly assembles a template against the current tip
// and mines it, submitting each solved block back through the node so
// it goes through the same acceptance/indexing path a relayed block
// would.
func runMiningLoop(ctx context.Context, nd *node.Node, mnr *miner.Miner, ev func(string, ...any)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tip := nd.Tip()

		block, err := mnr.AssembleTemplate(tip.Hash, tip.Height+1, nd.Chain().ExpectedBits())
		if err != nil {
			ev("mining: assemble template: %s", err)
			time.Sleep(time.Second)
			continue
		}

		mined, err := mnr.Mine(ctx, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ev("mining: %s", err)
			continue
		}

		if err := nd.SubmitBlock(mined.Serialize()); err != nil {
			ev("mining: submit solved block: %s", err)
		}
	}
}
