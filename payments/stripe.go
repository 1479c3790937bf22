package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// GatewayError wraps every failure talking to the payment provider so handlers
// can map it to a stable 502 response.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StripeClient implements CheckoutGateway against the Stripe Checkout REST
// API. Calls are bounded by the http client timeout.
type StripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewStripeClient() *StripeClient {
	return &StripeClient{
		apiKey:  os.Getenv("STRIPE_SECRET"),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewStripeClientWithBaseURL is used by tests to point at a stub server
func NewStripeClientWithBaseURL(apiKey, baseURL string) *StripeClient {
	return &StripeClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *StripeClient) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", params.CustomerEmail)
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &GatewayError{Op: "create session", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Stripe deduplicates retried creates by this key
	req.Header.Set("Idempotency-Key", uuid.NewString())

	return c.do(req, "create session")
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve session", Err: err}
	}
	return c.do(req, "retrieve session")
}

func (c *StripeClient) do(req *http.Request, op string) (*Session, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &session, nil
}
