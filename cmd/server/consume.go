package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/logger"
	"github.com/iliyamo/directorio-lugares/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Drain domain events into a rotating log for manual reconciliation",
	RunE: func(cmd *cobra.Command, args []string) error {
		logCfg := config.LoadLogConfig()
		log, err := logger.New(logCfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		mq := config.LoadRabbitMQConfig()
		if mq.URL == "" {
			return errors.New("RABBITMQ_URL is not set")
		}
		var sink io.Writer = os.Stdout
		if logCfg.Dir != "" {
			w, err := logger.RotatingWriter(logCfg.Dir, "eventos")
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer w.Close()
			sink = w
		}
		err = queue.StartEventConsumer(cmd.Context(), mq, sink, log.Named("consumer"))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
