/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/imgshare/apiserver/config"
	"github.com/imgshare/apiserver/internal/logging"
	"github.com/imgshare/apiserver/internal/mq"
	"github.com/imgshare/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect image lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log image events from the configured broker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("no message broker configured, set MQ_BACKEND")
		}
		defer broker.Close()

		events := mq.NewImageEvents(broker, cfg.MQ.Channel)
		logger.Info().Str("channel", events.Channel()).Msg("tailing image events")

		err = events.Tail(cmd.Context(), func(ctx context.Context, event types.ImageEvent) error {
			logger.Info().
				Str("type", event.Type).
				Str("image_id", event.ImageID).
				Str("name", event.Name).
				Str("username", event.Username).
				Time("occurred_at", event.OccurredAt).
				Msg("event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("tail %s: %w", events.Channel(), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
