package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"billing-service/logging"
	"billing-service/monitoring"
)

// Paystack talks to the Paystack transaction API with bearer-token auth.
type Paystack struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewPaystack creates a Paystack client with an instrumented transport
func NewPaystack(baseURL, secretKey string, timeout time.Duration) *Paystack {
	return &Paystack{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

type initializeRequest struct {
	Amount      int64  `json:"amount"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Amount    int64   `json:"amount"`
		PaidAt    *string `json:"paid_at"`
	} `json:"data"`
}

// InitializeTransaction creates a checkout for amountMinor kobo.
func (p *Paystack) InitializeTransaction(ctx context.Context, amountMinor int64, email, callbackURL string) (*Initialization, error) {
	var out initializeResponse
	err := p.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", initializeRequest{
		Amount:      amountMinor,
		Email:       email,
		CallbackURL: callbackURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Status || out.Data.Reference == "" || out.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: initialize rejected: %s", ErrGatewayUnreachable, out.Message)
	}

	return &Initialization{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

// VerifyTransaction fetches the current state of a transaction.
func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	var out verifyResponse
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.do(ctx, "verify", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, fmt.Errorf("%w: verify rejected: %s", ErrGatewayUnreachable, out.Message)
	}

	v := &Verification{
		Reference: reference,
		Status:    out.Data.Status,
		Amount:    out.Data.Amount,
	}
	if out.Data.PaidAt != nil && *out.Data.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, *out.Data.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad paid_at %q: %v", ErrGatewayUnreachable, *out.Data.PaidAt, err)
		}
		v.PaidAt = &paidAt
	}
	return v, nil
}

// VerifySignature checks a webhook body against its x-paystack-signature
// header, an HMAC-SHA512 of the raw body keyed with the secret key.
func (p *Paystack) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

func (p *Paystack) do(ctx context.Context, operation, method, path string, body, out any) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("external.service", "paystack"),
		attribute.String("gateway.operation", operation),
	)

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(start).Seconds()

	if err != nil {
		p.record(ctx, operation, "error", duration)
		span.SetAttributes(attribute.String("external.status", "error"))
		return fmt.Errorf("%w: %s: %v", ErrGatewayUnreachable, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.record(ctx, operation, "failed", duration)
		span.SetAttributes(
			attribute.Int("external.status_code", resp.StatusCode),
			attribute.String("external.status", "failed"),
		)
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		logging.FromContext(ctx).Warn("Payment gateway returned an error",
			zap.String("operation", operation),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("%w: %s returned status %d", ErrGatewayUnreachable, operation, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		p.record(ctx, operation, "failed", duration)
		return fmt.Errorf("%w: %s: decode response: %v", ErrGatewayUnreachable, operation, err)
	}

	p.record(ctx, operation, "success", duration)
	span.SetAttributes(attribute.String("external.status", "success"))
	return nil
}

func (p *Paystack) record(ctx context.Context, operation, status string, seconds float64) {
	monitoring.GatewayCallDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}
