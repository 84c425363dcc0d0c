package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/model"

	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer of the gateway, decoded from its error envelope.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway responded %d %s: %s", e.Status, e.Code, e.Description)
}

// Client talks to the gateway HTTP API with one merchant's credentials.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func New(baseURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateOrder(ctx context.Context, req engine.CreateOrderRequest) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", req, true, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+id, nil, true, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreatePayment(ctx context.Context, req engine.CreatePaymentRequest) (*model.Payment, error) {
	var payment model.Payment
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", req, true, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/"+id, nil, true, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) Stats(ctx context.Context) (*model.PaymentStats, error) {
	var stats model.PaymentStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/stats", nil, true, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// WaitForSettlement polls the payment until it leaves processing or ctx ends.
func (c *Client) WaitForSettlement(ctx context.Context, id string, interval time.Duration) (*model.Payment, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		payment, err := c.GetPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment.Status != model.PaymentStatusProcessing {
			return payment, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return payment, errors.Wrap(ctx.Err(), "wait for settlement")
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("X-Api-Secret", c.apiSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope apperr.Envelope
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "decode response")
}
