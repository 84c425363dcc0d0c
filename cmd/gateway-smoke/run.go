package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-gateway/internal/client"
	"payment-gateway/internal/config"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/model"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type scenario struct {
	Amount       int64
	Method       model.Method
	VPA          string
	CardNumber   string
	PollInterval time.Duration
	SettleWithin time.Duration
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create an order, pay it and wait for settlement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			var s scenario
			var method string
			s.Amount, _ = cmd.Flags().GetInt64("amount")
			method, _ = cmd.Flags().GetString("method")
			s.Method = model.Method(method)
			s.VPA, _ = cmd.Flags().GetString("vpa")
			s.CardNumber, _ = cmd.Flags().GetString("card")
			s.PollInterval, _ = cmd.Flags().GetDuration("poll")
			s.SettleWithin, _ = cmd.Flags().GetDuration("settle-within")

			return runScenario(cmd.Context(), c, s, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64("amount", int64(config.GetInt("SMOKE_AMOUNT", 50_000)), "Order amount in minor units")
	cmd.Flags().String("method", config.GetString("SMOKE_METHOD", string(model.MethodUPI)), "Payment method (upi, card)")
	cmd.Flags().String("vpa", "smoke@okaxis", "VPA for upi payments")
	cmd.Flags().String("card", "4111111111111111", "Card number for card payments")
	cmd.Flags().Duration("poll", 500*time.Millisecond, "Payment polling interval")
	cmd.Flags().Duration("settle-within", 30*time.Second, "Maximum time to wait for settlement")

	return cmd
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	url, err := cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}
	key, _ := cmd.Flags().GetString("key")
	secret, _ := cmd.Flags().GetString("secret")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(url, key, secret, timeout), nil
}

// runScenario walks one order through payment and settlement, then checks
// that the gateway rejects an invalid card and an unknown payment id.
func runScenario(ctx context.Context, c *client.Client, s scenario, out io.Writer) error {
	order, err := c.CreateOrder(ctx, engine.CreateOrderRequest{Amount: &s.Amount})
	if err != nil {
		return errors.Wrap(err, "create order")
	}
	report(out, "order created", order)

	req := engine.CreatePaymentRequest{OrderID: order.ID, Method: s.Method}
	switch s.Method {
	case model.MethodUPI:
		req.VPA = &s.VPA
	case model.MethodCard:
		req.Card = smokeCard(s.CardNumber)
	default:
		return errors.Errorf("unsupported method %q", s.Method)
	}

	payment, err := c.CreatePayment(ctx, req)
	if err != nil {
		return errors.Wrap(err, "create payment")
	}
	report(out, "payment created", payment)

	waitCtx, cancel := context.WithTimeout(ctx, s.SettleWithin)
	defer cancel()
	payment, err = c.WaitForSettlement(waitCtx, payment.ID, s.PollInterval)
	if err != nil {
		return errors.Wrap(err, "wait for settlement")
	}
	report(out, "payment settled", payment)

	order, err = c.GetOrder(ctx, order.ID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	report(out, "order after settlement", order)

	expected := model.OrderStatusCreated
	if payment.Status == model.PaymentStatusSuccess {
		expected = model.OrderStatusPaid
	}
	if order.Status != expected {
		return errors.Errorf("order %s is %s after %s payment, expected %s", order.ID, order.Status, payment.Status, expected)
	}

	_, err = c.CreatePayment(ctx, engine.CreatePaymentRequest{OrderID: order.ID, Method: model.MethodCard, Card: smokeCard("4111111111111112")})
	if err := expectAPIError(err, http.StatusBadRequest, "INVALID_CARD"); err != nil {
		return errors.Wrap(err, "invalid card")
	}

	_, err = c.GetPayment(ctx, "pay_0000000000000000")
	if err := expectAPIError(err, http.StatusNotFound, "NOT_FOUND_ERROR"); err != nil {
		return errors.Wrap(err, "unknown payment")
	}

	fmt.Fprintln(out, "smoke run passed")
	return nil
}

func smokeCard(number string) *model.Card {
	return &model.Card{
		Number:      number,
		ExpiryMonth: "12",
		ExpiryYear:  model.FlexString(fmt.Sprintf("%02d", (time.Now().Year()+3)%100)),
		CVV:         "123",
		HolderName:  "Smoke Test",
	}
}

func expectAPIError(err error, status int, code string) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return errors.Errorf("expected %d %s, got %v", status, code, err)
	}
	if apiErr.Status != status || apiErr.Code != code {
		return errors.Errorf("expected %d %s, got %d %s", status, code, apiErr.Status, apiErr.Code)
	}
	return nil
}

func report(out io.Writer, step string, v any) {
	raw, _ := json.Marshal(v)
	fmt.Fprintf(out, "%s: %s\n", step, raw)
}
