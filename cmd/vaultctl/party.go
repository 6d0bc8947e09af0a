package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"commitvault/internal/gateway"
	"commitvault/internal/partycall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	partyKey       string
	partyTarget    string
	partyAddress   string
	partyOperation string
	partyArgs      string
	partyTTL       time.Duration
)

var partyCmd = &cobra.Command{
	Use:   "party",
	Short: "Calls made by a vault party against the local ledger",
}

var partySignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print a signed body for POST /api/v1/ledger/calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if partyKey == "" {
			return errors.New("--key is required")
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(partyKey, "0x"))
		if err != nil {
			return fmt.Errorf("parse key: %w", err)
		}
		callArgs, err := gateway.DecodeArgs([]byte(partyArgs))
		if err != nil {
			return err
		}
		if partyTTL <= 0 || partyTTL > partycall.MaxValidity {
			return fmt.Errorf("ttl must be within (0, %s]", partycall.MaxValidity)
		}

		env, err := partycall.Sign(key, partycall.Call{
			Target:        partyTarget,
			TargetAddress: partyAddress,
			Operation:     partyOperation,
			Args:          callArgs,
			ExpiresAt:     time.Now().Add(partyTTL).Unix(),
		})
		if err != nil {
			return err
		}
		log.Debug().Str("signer", crypto.PubkeyToAddress(key.PublicKey).Hex()).Msg("party call signed")
		return json.NewEncoder(cmd.OutOrStdout()).Encode(env)
	},
}

func init() {
	partySignCmd.Flags().StringVar(&partyKey, "key", "", "Hex secp256k1 key of the party")
	partySignCmd.Flags().StringVar(&partyTarget, "target", gateway.EntityVault, "Target entity")
	partySignCmd.Flags().StringVar(&partyAddress, "address", "", "Vault address for CommitmentVault calls")
	partySignCmd.Flags().StringVar(&partyOperation, "operation", "", "Operation name")
	partySignCmd.Flags().StringVar(&partyArgs, "args", "[]", "Operation arguments as a JSON array")
	partySignCmd.Flags().DurationVar(&partyTTL, "ttl", 5*time.Minute, "Validity of the signed call")

	partyCmd.AddCommand(partySignCmd)
	rootCmd.AddCommand(partyCmd)
}
