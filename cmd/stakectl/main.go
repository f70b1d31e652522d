package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"stakeledger/pkg/config"
	mcsolana "stakeledger/pkg/solana"
)

var app = &cli.App{
	Name:  "stakectl",
	Usage: "operator tool for the staking ledger",
	Flags: []cli.Flag{keystoreFlag},
	Before: func(c *cli.Context) error {
		config.LoadEnv()
		return nil
	},
	Commands: []*cli.Command{
		commandKeygen,
		commandDerive,
		commandSign,
		commandCall,
		commandMigrate,
	},
}

// Commonly used command line flags.
var (
	keystoreFlag = &cli.StringFlag{
		Name:    "keystore",
		Usage:   "directory holding encrypted signer keys",
		Value:   mcsolana.DefaultKeystoreDir,
		EnvVars: []string{"KEYSTORE_DIR"},
	}
	passwordFileFlag = &cli.StringFlag{
		Name:  "passwordfile",
		Usage: "the file that contains the keystore password; defaults to $KEYSTORE_PASSWORD",
	}
	programFlag = &cli.StringFlag{
		Name:    "program",
		Usage:   "staking program id the addresses are derived from",
		Value:   mcsolana.DefaultStakingProgramID.String(),
		EnvVars: []string{"STAKING_PROGRAM_ID"},
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

func keyManager(c *cli.Context) *mcsolana.KeyManager {
	return mcsolana.NewKeyManager(c.String(keystoreFlag.Name))
}

// password reads --passwordfile, falling back to $KEYSTORE_PASSWORD.
func password(c *cli.Context) (string, error) {
	if file := c.String(passwordFileFlag.Name); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if pw := os.Getenv("KEYSTORE_PASSWORD"); pw != "" {
		return pw, nil
	}
	return "", fmt.Errorf("no password: set --%s or KEYSTORE_PASSWORD", passwordFileFlag.Name)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
