package cmd

import "github.com/spf13/cobra"

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Run a node with mining enabled against its own mempool",
	Run:   mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	addRunFlags(mineCmd)
	mineCmd.Flags().StringVar(&runMinerAddress, "miner-address", "", "Address mined subsidy/fees are paid to.")
	mineCmd.MarkFlagRequired("miner-address")
}

func mineRun(cmd *cobra.Command, args []string) {
	cfg := configFromFlags()
	cfg.Node.Mine = true
	runNode(cfg)
}
