// Command doulitsactl is the operator CLI for a Doulitsa deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	apiURL      string
	accessToken string
	configPath  string
	timeout     time.Duration
	verbose     bool

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:           "doulitsactl",
	Short:         "Operate a Doulitsa backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("DOULITSA_API", "http://localhost:4001"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", os.Getenv("DOULITSA_TOKEN"), "access token (or DOULITSA_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("DOULITSA_CONFIG", "config/config.yaml"), "server config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for one-shot commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(revalidateCmd)
}

func main() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireToken() error {
	if accessToken == "" {
		return fmt.Errorf("an access token is required: run `doulitsactl login` and pass --token or set DOULITSA_TOKEN")
	}
	return nil
}
