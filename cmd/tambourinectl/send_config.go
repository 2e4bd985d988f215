package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var sendConfigTimeout time.Duration

var sendConfigCmd = &cobra.Command{
	Use:   "send-config <kind> [json-payload]",
	Short: "Send a configuration message to the server",
	Long: `Send one configuration message, for example:

  tambourinectl send-config set-stt-provider '{"provider":"whisper"}'
  tambourinectl send-config set-stt-timeout '{"timeout_seconds":1.5}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		var raw string
		if len(args) == 2 {
			raw = args[1]
		}
		payload, err := parsePayload(raw)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.ConnectTimeout+sendConfigTimeout)
		defer cancel()

		session, err := openSession(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer session.close()

		if err := session.services.Controller.SendConfig(kind, payload); err != nil {
			return err
		}

		select {
		case result := <-session.sink.configs:
			out, err := yaml.Marshal(result)
			if err != nil {
				return fmt.Errorf("error marshaling result: %w", err)
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), string(out)); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("server rejected %s: %s", kind, result.Error)
			}
			return nil
		case <-time.After(sendConfigTimeout):
			return errors.New("timed out waiting for the server to confirm")
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

// parsePayload decodes a JSON payload argument. An empty argument is an empty object.
func parsePayload(raw string) (any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid json payload: %w", err)
	}
	return payload, nil
}

func init() {
	sendConfigCmd.Flags().DurationVar(&sendConfigTimeout, "timeout", 10*time.Second, "how long to wait for the server to confirm")
}
