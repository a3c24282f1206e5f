package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		cancel()
		log.Fatalf("simmatch-cli: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "simmatch-cli",
		Short:         "Find semantically similar rows between two spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.json or config.yaml (default: ./config.json)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Optional .env file loaded before reading the environment")

	cmd.AddCommand(
		newCompareCmd(opts),
		newColumnsCmd(opts),
	)
	return cmd
}
