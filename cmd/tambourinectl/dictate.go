package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	dictateDuration      time.Duration
	dictateResultTimeout time.Duration
	dictateMetricsAddr   string
)

var dictateCmd = &cobra.Command{
	Use:   "dictate",
	Short: "Record one dictation and print the cleaned text",
	Long: `Connect to the dictation server, record from the configured microphone
until Enter is pressed (or --duration elapses), then print the text returned by
the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		if dictateMetricsAddr != "" {
			shutdown := serveMetrics(dictateMetricsAddr, registry)
			defer shutdown()
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.Session.ConnectTimeout)
		session, err := openSession(connectCtx, registry)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer session.close()

		controller := session.services.Controller
		if err := controller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		if dictateDuration > 0 {
			log.Info().Dur("duration", dictateDuration).Msg("recording")
		} else {
			log.Info().Msg("recording... press Enter to stop")
		}

		waitForStop(ctx, cmd, dictateDuration)

		if err := controller.Stop(); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		select {
		case result := <-session.sink.results:
			_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return err
		case <-time.After(dictateResultTimeout):
			return errors.New("timed out waiting for the dictation result")
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

// waitForStop returns on Enter, after duration (when positive), or when ctx ends.
func waitForStop(ctx context.Context, cmd *cobra.Command, duration time.Duration) {
	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		close(enter)
	}()

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-enter:
	case <-timeout:
	case <-ctx.Done():
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func init() {
	dictateCmd.Flags().DurationVar(&dictateDuration, "duration", 0, "stop recording after this long instead of waiting for Enter")
	dictateCmd.Flags().DurationVar(&dictateResultTimeout, "result-timeout", 30*time.Second, "how long to wait for the server's text")
	dictateCmd.Flags().StringVar(&dictateMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}
