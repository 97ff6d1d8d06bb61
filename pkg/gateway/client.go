package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"creatorhub-platform/pkg/config"
	"creatorhub-platform/pkg/errutil"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway", fx.Provide(NewClient))

const defaultTimeout = 15 * time.Second

// Client talks to the payment gateway's REST API. Every call carries an
// explicit timeout and an idempotency key so a retried request cannot
// double-charge.
type Client struct {
	http *resty.Client
}

type ClientParams struct {
	fx.In
	Cfg *config.Config
}

func NewClient(p ClientParams) *Client {
	timeout := p.Cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	http := resty.New().
		SetBaseURL(p.Cfg.Gateway.BaseURL).
		SetBasicAuth(p.Cfg.Gateway.SecretKey, "").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{http: http}
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*CustomerResponse, error) {
	var out CustomerResponse
	if err := c.post(ctx, "/customers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCard(ctx context.Context, customerID string, req CardRequest) (*CardResponse, error) {
	var out CardResponse
	path := fmt.Sprintf("/customers/%s/cards", customerID)
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	if err := c.post(ctx, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	var out TransferResponse
	if err := c.post(ctx, "/transfers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", uuid.NewString()).
		SetBody(body).
		SetResult(out).
		SetError(&apiError{}).
		Post(path)
	if err != nil {
		if isTimeout(err) {
			return errutil.Timeout("gateway call timed out", errutil.WithErr(err))
		}
		return errutil.BadGateway("gateway call failed", errutil.WithErr(err))
	}

	if resp.IsError() {
		apiErr, _ := resp.Error().(*apiError)
		msg := "gateway rejected request"
		if apiErr != nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		zap.L().Warn("gateway error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg),
		)
		if resp.StatusCode() >= 500 {
			return errutil.BadGateway(msg)
		}
		return errutil.GatewayDeclined(msg)
	}

	return nil
}

// IsRetryable reports whether the outcome of the call is unknown and may be
// retried on a later run. Declines are final; timeouts and 5xx are not.
func IsRetryable(err error) bool {
	switch errutil.StatusOf(err) {
	case errutil.StatusTimeout, errutil.StatusBadGateway:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
