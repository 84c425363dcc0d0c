package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"payment-gateway/internal/config"
	"payment-gateway/internal/kafka"
	"payment-gateway/internal/logging"
	"payment-gateway/internal/message"

	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail payment events from Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			broker, _ := cmd.Flags().GetString("broker")
			topic, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			level, _ := cmd.Flags().GetString("log-level")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.GetLogger(config.Logs{URL: config.GetString("LOGS_URL", ""), Level: level})
			reader := kafka.NewReader(broker, topic, group)
			defer reader.Close()

			out := cmd.OutOrStdout()
			return kafka.ReadPaymentEvents(ctx, reader, logger, func(_ context.Context, event message.PaymentEvent) error {
				raw, err := json.Marshal(event)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(raw))
				return err
			})
		},
	}

	cmd.Flags().String("broker", config.GetString("KAFKA_BROKER_URL", "localhost:9092"), "Kafka broker list")
	cmd.Flags().String("topic", config.GetString("KAFKA_TOPIC_SETTLEMENT_EVENTS", "settlement-events"), "Settlement events topic")
	cmd.Flags().String("group", config.GetString("KAFKA_READER_GROUP_ID", "gateway-smoke"), "Consumer group id")
	cmd.Flags().String("log-level", config.GetString("LOGS_LEVEL", "warn"), "Log level for reader diagnostics")

	return cmd
}
