/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_panel/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long:  "Sign a bearer token for the panel API with the configured JWT signing key",
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject, e.g. the desk or display name (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleOperator, "Role to grant: operator or viewer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if !auth.ValidRole(tokenRole) {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), tokenSubject, []string{tokenRole}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
