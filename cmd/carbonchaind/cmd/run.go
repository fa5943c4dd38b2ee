package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/carbonchain/node/foundation/logger"
	"github.com/carbonchain/node/foundation/nodeservice"
	"github.com/spf13/cobra"
)

var (
	runGenesisPath  string
	runDBPath       string
	runDebugHost    string
	runPublicHost   string
	runPrivateHost  string
	runReadTimeout  time.Duration
	runWriteTimeout time.Duration
	runIdleTimeout  time.Duration
	runShutdown     time.Duration
	runMine         bool
	runMinerAddress string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a node against an existing genesis file",
	Run:   runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&runMine, "mine", false, "Mine new blocks against this node's own mempool.")
	runCmd.Flags().StringVar(&runMinerAddress, "miner-address", "", "Address mined subsidy/fees are paid to. Required with --mine.")
}

// addRunFlags registers the flags run and mine share.
func addRunFlags(c *cobra.Command) {
	def := nodeservice.DefaultConfig(build)
	c.Flags().StringVar(&runGenesisPath, "genesis-path", def.Node.GenesisPath, "Path to the genesis file.")
	c.Flags().StringVar(&runDBPath, "db-path", def.Node.DBPath, "Path to the chain database.")
	c.Flags().StringVar(&runDebugHost, "debug-host", def.Web.DebugHost, "Listen address for the debug mux.")
	c.Flags().StringVar(&runPublicHost, "public-host", def.Web.PublicHost, "Listen address for the public v1 API.")
	c.Flags().StringVar(&runPrivateHost, "private-host", def.Web.PrivateHost, "Listen address for the private v1 API.")
	c.Flags().DurationVar(&runReadTimeout, "read-timeout", def.Web.ReadTimeout, "HTTP read timeout.")
	c.Flags().DurationVar(&runWriteTimeout, "write-timeout", def.Web.WriteTimeout, "HTTP write timeout.")
	c.Flags().DurationVar(&runIdleTimeout, "idle-timeout", def.Web.IdleTimeout, "HTTP idle timeout.")
	c.Flags().DurationVar(&runShutdown, "shutdown-timeout", def.Web.ShutdownTimeout, "Graceful shutdown timeout.")
}

// configFromFlags builds a nodeservice.Config from the flags addRunFlags
// registered.
func configFromFlags() nodeservice.Config {
	cfg := nodeservice.DefaultConfig(build)
	cfg.Node.GenesisPath = runGenesisPath
	cfg.Node.DBPath = runDBPath
	cfg.Web.DebugHost = runDebugHost
	cfg.Web.PublicHost = runPublicHost
	cfg.Web.PrivateHost = runPrivateHost
	cfg.Web.ReadTimeout = runReadTimeout
	cfg.Web.WriteTimeout = runWriteTimeout
	cfg.Web.IdleTimeout = runIdleTimeout
	cfg.Web.ShutdownTimeout = runShutdown
	cfg.Node.Mine = runMine
	cfg.Node.MinerAddress = runMinerAddress
	return cfg
}

func runRun(cmd *cobra.Command, args []string) {
	runNode(configFromFlags())
}

// runNode builds a logger and hands cfg to nodeservice.Run, the shared
// run loop app/services/node/main.go also drives.
func runNode(cfg nodeservice.Config) {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := nodeservice.Run(log, cfg); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}
