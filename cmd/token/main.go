// Command token mints a bearer token for the /api routes.
//
//	token --sub ops --admin --ttl 1h
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/playtracker/internal/auth"
	"github.com/sakif/playtracker/internal/config"
)

func main() {
	if err := tokenCmd(secretFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func secretFromEnv() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.JWTSecret, nil
}

func tokenCmd(secret func() (string, error)) *cobra.Command {
	var (
		sub   string
		admin bool
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:           "token",
		Short:         "Print a signed bearer token for the /api routes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secret()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenService(key)
			if err != nil {
				return err
			}
			tok, err := tokens.GenerateWithDuration(sub, admin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "admin", "Token subject.")
	cmd.Flags().BoolVar(&admin, "admin", true, "Grant admin rights.")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "Token lifetime.")
	return cmd
}
