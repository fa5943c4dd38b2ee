package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
)

var (
	genesisOut         string
	genesisBits        uint32
	genesisChainID     uint16
	genesisTestnet     bool
	genesisArgon2      bool
	genesisBlake2b     bool
	genesisBalanceArgs []string
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Write a genesis.json a node can be started from",
	Run:   genesisRun,
}

func init() {
	rootCmd.AddCommand(genesisCmd)
	genesisCmd.Flags().StringVarP(&genesisOut, "out", "o", "zblock/genesis.json", "Path to write the genesis file to.")
	genesisCmd.Flags().Uint32Var(&genesisBits, "bits", 0x1f00ffff, "Genesis difficulty bits.")
	genesisCmd.Flags().Uint16Var(&genesisChainID, "chain-id", 1, "Chain identifier.")
	genesisCmd.Flags().BoolVar(&genesisTestnet, "testnet", false, "Use the testnet address version byte.")
	genesisCmd.Flags().BoolVar(&genesisArgon2, "argon2", false, "Use Argon2id instead of Scrypt for proof of work.")
	genesisCmd.Flags().BoolVar(&genesisBlake2b, "blake2b", false, "Use BLAKE2b-256 instead of SHA-256d for general hashing.")
	genesisCmd.Flags().StringArrayVar(&genesisBalanceArgs, "balance", nil, "A genesis coinbase output as address=amount. Repeatable.")
}

func genesisRun(cmd *cobra.Command, args []string) {
	balances, err := parseBalances(genesisBalanceArgs)
	if err != nil {
		log.Fatal(err)
	}

	addressVersion := crypto.AddressVersionMainnet
	if genesisTestnet {
		addressVersion = crypto.AddressVersionTestnet
	}
	powAlgorithm := crypto.PoWScrypt
	if genesisArgon2 {
		powAlgorithm = crypto.PoWArgon2id
	}
	hashAlgorithm := crypto.HashSHA256D
	if genesisBlake2b {
		hashAlgorithm = crypto.HashBlake2b256
	}

	now := time.Now().UTC()
	params := genesis.Params{
		Date:           now,
		ChainID:        genesisChainID,
		GenesisBits:    genesisBits,
		GenesisTime:    uint32(now.Unix()),
		HashAlgorithm:  hashAlgorithm,
		PoWAlgorithm:   powAlgorithm,
		AddressVersion: addressVersion,
		Balances:       balances,
	}

	encoded, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(genesisOut), 0o700); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(genesisOut, encoded, 0o600); err != nil {
		log.Fatal(err)
	}

	fmt.Println(genesisOut)
}

// parseBalances turns a slice of "address=amount" flag values into the
// map genesis.Params.Balances expects.
func parseBalances(args []string) (map[string]uint64, error) {
	balances := make(map[string]uint64, len(args))

	for _, arg := range args {
		address, amountStr, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("--balance %q: expected address=amount", arg)
		}

		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--balance %q: invalid amount: %w", arg, err)
		}

		balances[address] = amount
	}

	return balances, nil
}
