package payments

import "context"

// Session is the gateway's view of a hosted checkout flow. The session id is
// distinct from the charge id (PaymentIntent), which is what we use as the
// idempotency key when recording payments.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// StatusPaid is the gateway's terminal payment_status for a settled session
const StatusPaid = "paid"

// CreateSessionParams carries everything needed to open a hosted checkout
type CreateSessionParams struct {
	AmountMinor   int64 // currency minor units (cents)
	Currency      string
	ProductName   string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// CheckoutGateway abstracts the payment provider: create a hosted checkout
// session, then later retrieve its finalized outcome by id.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}
