package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"doulitsa/internal/models"
)

var revalidateCmd = &cobra.Command{
	Use:     "revalidate TAG...",
	Short:   "Invalidate cached entries by tag (admin)",
	Example: "  doulitsactl revalidate categories service:42 profile:username:eleni",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if err := call(ctx, http.MethodPost, "/admin/revalidate", models.RevalidateRequest{Tags: args}, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revalidated %d tag(s)\n", len(args))
		return nil
	},
}
