package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/model"
)

// newHashKeyCmd mints an API key and prints the BEACON_API_CLIENTS entry
// for it. The plaintext key is shown once.
func newHashKeyCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "hash-key <client-id>",
		Short: "Generate an API key and its BEACON_API_CLIENTS entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID := args[0]
			if err := model.ValidateClientID(clientID); err != nil {
				return err
			}
			r, err := model.ParseClientRole(role)
			if err != nil {
				return err
			}
			key, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "api_key: %s\n", key)
			_, _ = fmt.Fprintf(out, "client_entry: %s:%s:%s\n", clientID, r, hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(model.RoleAnalyst), "client role: admin, analyst or viewer")
	return cmd
}

// newGenKeyCmd writes an Ed25519 key pair for token signing.
func newGenKeyCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Write an Ed25519 JWT signing key pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			privPEM, pubPEM, err := auth.GenerateKeyPEM()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("genkey: %w", err)
			}
			privPath := filepath.Join(dir, "jwt_private.pem")
			pubPath := filepath.Join(dir, "jwt_public.pem")
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return fmt.Errorf("genkey: %w", err)
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return fmt.Errorf("genkey: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "BEACON_JWT_PRIVATE_KEY=%s\n", privPath)
			_, _ = fmt.Fprintf(out, "BEACON_JWT_PUBLIC_KEY=%s\n", pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}
