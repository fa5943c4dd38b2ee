// This program runs a full carbonchain node: it serves the node's
// query/command surface over HTTP and, optionally, mines new blocks
// against its own mempool. Configuration is read from NODE_* environment
// variables and flags; the run loop itself lives in foundation/nodeservice
// so the cmd/carbonchaind operator CLI can drive the identical service
// from cobra flags instead.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/carbonchain/node/foundation/logger"
	"github.com/carbonchain/node/foundation/nodeservice"
	"go.uber.org/zap"
)

// build is the git version of this program, set using build flags in
// the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	parsed := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Node struct {
			GenesisPath  string `conf:"default:zblock/genesis.json"`
			DBPath       string `conf:"default:zblock/chain.db"`
			Mine         bool   `conf:"default:false"`
			MinerAddress string `conf:"default:"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "carbonchain node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &parsed)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&parsed)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	cfg := nodeservice.DefaultConfig(build)
	cfg.Web.ReadTimeout = parsed.Web.ReadTimeout
	cfg.Web.WriteTimeout = parsed.Web.WriteTimeout
	cfg.Web.IdleTimeout = parsed.Web.IdleTimeout
	cfg.Web.ShutdownTimeout = parsed.Web.ShutdownTimeout
	cfg.Web.DebugHost = parsed.Web.DebugHost
	cfg.Web.PublicHost = parsed.Web.PublicHost
	cfg.Web.PrivateHost = parsed.Web.PrivateHost
	cfg.Node.GenesisPath = parsed.Node.GenesisPath
	cfg.Node.DBPath = parsed.Node.DBPath
	cfg.Node.Mine = parsed.Node.Mine
	cfg.Node.MinerAddress = parsed.Node.MinerAddress

	return nodeservice.Run(log, cfg)
}
