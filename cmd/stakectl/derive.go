package main

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	mcsolana "stakeledger/pkg/solana"
)

type outputDerive struct {
	Pool         string `json:"pool"`
	PoolBump     uint8  `json:"pool_bump"`
	StakingVault string `json:"staking_vault"`
	RewardVault  string `json:"reward_vault"`
	UserStake    string `json:"user_stake,omitempty"`
}

var commandDerive = &cli.Command{
	Name:      "derive",
	Usage:     "print the pool, vault and position addresses of a staking mint",
	ArgsUsage: "<staking-mint> [ <owner> ]",
	Flags:     []cli.Flag{programFlag, jsonFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("staking mint required")
		}
		programID, err := solana.PublicKeyFromBase58(c.String(programFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid program id: %w", err)
		}
		mint, err := solana.PublicKeyFromBase58(c.Args().Get(0))
		if err != nil {
			return fmt.Errorf("invalid staking mint: %w", err)
		}
		var owner *solana.PublicKey
		if c.NArg() > 1 {
			key, err := solana.PublicKeyFromBase58(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			owner = &key
		}

		out, err := derive(programID, mint, owner)
		if err != nil {
			return err
		}
		if c.Bool(jsonFlag.Name) {
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Fprintln(c.App.Writer, string(data))
			return nil
		}
		fmt.Fprintf(c.App.Writer, "Pool:          %s (bump %d)\n", out.Pool, out.PoolBump)
		fmt.Fprintf(c.App.Writer, "Staking vault: %s\n", out.StakingVault)
		fmt.Fprintf(c.App.Writer, "Reward vault:  %s\n", out.RewardVault)
		if out.UserStake != "" {
			fmt.Fprintf(c.App.Writer, "User stake:    %s\n", out.UserStake)
		}
		return nil
	},
}

func derive(programID, mint solana.PublicKey, owner *solana.PublicKey) (outputDerive, error) {
	addrs, err := mcsolana.GetPoolAddresses(programID, mint)
	if err != nil {
		return outputDerive{}, err
	}
	out := outputDerive{
		Pool:         addrs.Pool.Address.String(),
		PoolBump:     addrs.Pool.Bump,
		StakingVault: addrs.StakingVault.Address.String(),
		RewardVault:  addrs.RewardVault.Address.String(),
	}
	if owner != nil {
		pos, err := mcsolana.GetUserStakePDA(programID, addrs.Pool.Address, *owner)
		if err != nil {
			return outputDerive{}, err
		}
		out.UserStake = pos.Address.String()
	}
	return out, nil
}
