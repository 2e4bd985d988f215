package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tambourine/internal/bootstrap"
	"tambourine/internal/transport/smallwebrtc"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the STT and LLM providers available on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build(cfg, bootstrap.Dependencies{Events: newCLISink()})
		if err != nil {
			return err
		}
		defer services.Controller.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
		defer cancel()
		available, err := services.Dialer.Providers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list providers: %w", err)
		}
		return printProviders(cmd, available)
	},
}

func printProviders(cmd *cobra.Command, available *smallwebrtc.AvailableProviders) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tVALUE\tLABEL")
	for _, option := range available.STT {
		fmt.Fprintf(w, "stt\t%s\t%s\n", option.Value, option.Label)
	}
	for _, option := range available.LLM {
		fmt.Fprintf(w, "llm\t%s\t%s\n", option.Value, option.Label)
	}
	return w.Flush()
}
