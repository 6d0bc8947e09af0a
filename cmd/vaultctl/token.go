package main

import (
	"errors"
	"fmt"
	"time"

	"commitvault/internal/dispatch"

	"github.com/spf13/cobra"
)

var (
	tokenSecret  string
	tokenIssuer  string
	tokenSubject string
	tokenTTL     time.Duration
	tokenLegacy  bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Dispatch bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for the dispatch endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := envDefault(tokenSecret, "DISPATCH_SECRET")
		if secret == "" {
			return errors.New("secret is required (--secret or DISPATCH_SECRET)")
		}
		issuer, err := tokenIssuerFor(secret)
		if err != nil {
			return err
		}
		token, err := issuer.Issue(tokenSubject, tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func tokenIssuerFor(secret string) (dispatch.Issuer, error) {
	if tokenLegacy {
		log.Warn().Msg("legacy tokens carry the shared secret itself")
		return dispatch.NewLegacyAuthenticator(secret)
	}
	issuer := envDefault(tokenIssuer, "DISPATCH_TOKEN_ISSUER")
	if issuer == "" {
		issuer = "commitvault"
	}
	return dispatch.NewTokenAuthenticator(secret, issuer)
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenSecret, "secret", "", "Shared dispatch secret (default $DISPATCH_SECRET)")
	tokenIssueCmd.Flags().StringVar(&tokenIssuer, "issuer", "", "Token issuer (default $DISPATCH_TOKEN_ISSUER or commitvault)")
	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 5*time.Minute, "Token lifetime")
	tokenIssueCmd.Flags().BoolVar(&tokenLegacy, "legacy", false, "Issue a legacy base64 token")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
