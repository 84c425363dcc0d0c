package main

import (
	"fmt"
	"os"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/ledger"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway-smoke",
		Short: "Smoke checks against a running payment gateway",
	}

	rootCmd.PersistentFlags().String("url", config.GetString("GATEWAY_URL", "http://localhost:8000"), "Gateway base URL")
	rootCmd.PersistentFlags().String("key", config.GetString("GATEWAY_API_KEY", ledger.TestMerchantKey), "Merchant API key")
	rootCmd.PersistentFlags().String("secret", config.GetString("GATEWAY_API_SECRET", ledger.TestMerchantSecret), "Merchant API secret")
	rootCmd.PersistentFlags().Duration("timeout", config.GetDuration("GATEWAY_TIMEOUT", 10*time.Second), "HTTP request timeout")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
