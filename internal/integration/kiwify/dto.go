package kiwify

import (
	"context"
	"net/http"
	"time"
)

const (
	// BaseURL is the versioned base URL of the Kiwify public API
	BaseURL = "https://public-api.kiwify.com/v1"

	// TokenPath is the client-credentials grant endpoint, relative to BaseURL
	TokenPath = "/oauth/token"

	SalesPath         = "/sales"
	PaymentsPath      = "/payments"
	SubscriptionsPath = "/subscriptions"

	// DefaultCurrency is the home currency assumed when a payload has none
	DefaultCurrency = "BRL"

	// DefaultListWindow is the date range used when a list call gives none.
	// The sales endpoint rejects requests without both dates.
	DefaultListWindow = 90 * 24 * time.Hour

	// DefaultPageSize is used when ListParams.PerPage is zero
	DefaultPageSize = 50

	// MaxPageIterations bounds every pagination walk
	MaxPageIterations = 500

	// listDateLayout is the date format the list endpoints accept
	listDateLayout = "2006-01-02"
)

// Payload is a loosely typed upstream object (sale, subscription or payment).
// Shapes differ between list, detail and webhook payloads so fields are read
// through the resolvers in normalize.go rather than fixed structs.
type Payload map[string]interface{}

// Request describes one call through the rate limited executor
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    interface{}
	Headers map[string]string
}

// Response is the raw upstream response. Non-2xx responses are returned, not
// raised, once retries are exhausted; callers must check StatusCode.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ListParams are the filters accepted by the list endpoints
type ListParams struct {
	Page           int
	PerPage        int
	Cursor         string
	StartDate      *time.Time
	EndDate        *time.Time
	SubscriptionID string
	ExternalID     string
	CustomerEmail  string
}

// Page is one decoded list response
type Page struct {
	Items      []Payload
	NextPage   int
	NextCursor string
	HasMore    bool
}

// ListFunc fetches one page. Used by the pagination walker.
type ListFunc func(ctx context.Context, params ListParams) (*Page, error)

// TokenMetadata describes the access token currently in use
type TokenMetadata struct {
	ExpiresAt time.Time `json:"expires_at"`
	Source    string    `json:"source"`
}

// ErrorResponse is the error envelope returned by the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
