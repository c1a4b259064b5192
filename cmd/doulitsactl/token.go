package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"doulitsa/internal/realtime"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the access token for a realtime token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		tok, err := newTokenSource().RealtimeToken(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tok)
	},
}

func newTokenSource() *realtime.TokenSource {
	return realtime.NewTokenSource(strings.TrimRight(apiURL, "/")+"/auth/realtime/token", accessToken, nil)
}
