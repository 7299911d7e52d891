package kiwify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/types"
	"golang.org/x/time/rate"
)

const (
	maxRateLimitRetries   = 5
	maxServerErrorRetries = 3

	// Retry-After values above this fall back to exponential backoff
	maxRetryAfter = time.Hour

	// DefaultRequestsPerMinute is the upstream budget when none is configured
	DefaultRequestsPerMinute = 100
)

// jsonCodec decodes numbers as json.Number so integer cents and ids survive intact
var jsonCodec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// KiwifyClient defines the Kiwify API operations used by billing sync
type KiwifyClient interface {
	Do(ctx context.Context, req Request) (*Response, error)
	ListSales(ctx context.Context, params ListParams) (*Page, error)
	GetSale(ctx context.Context, saleID string) (Payload, error)
	ListPayments(ctx context.Context, params ListParams) (*Page, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	TokenMetadata(ctx context.Context, forceRefresh bool) (*TokenMetadata, error)
}

// Config holds the client settings
type Config struct {
	BaseURL           string
	AccountID         string
	RequestsPerMinute int
	PageSize          int
	HTTPTimeout       time.Duration
	TransportRetries  int
}

// Client executes rate limited, retried requests against the Kiwify API.
// Calls are paced by a single token limiter so one run never bursts.
type Client struct {
	baseURL     string
	accountID   string
	pageSize    int
	httpClient  *http.Client
	credentials TokenProvider
	limiter     *rate.Limiter
	logger      *logger.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient builds the transport used for upstream calls. It retries
// connection level failures only; HTTP statuses are handled by Client.Do.
func NewHTTPClient(cfg Config, log *logger.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.TransportRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = log.GetRetryableHTTPLogger()
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc.HTTPClient.Timeout = timeout

	return rc.StandardClient()
}

// NewClient creates a new Kiwify client
func NewClient(
	cfg Config,
	credentials TokenProvider,
	httpClient *http.Client,
	logger *logger.Logger,
) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg, logger)
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accountID:   cfg.AccountID,
		pageSize:    pageSize,
		httpClient:  httpClient,
		credentials: credentials,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newRetryBackOff yields 2^attempt seconds for attempt 1, 2, 3...
func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do sends a request, waiting on the limiter before every attempt.
//
// 401/403 invalidates the cached token and retries once with a fresh one.
// 429 is retried up to 5 times, honouring a numeric Retry-After.
// 5xx is retried up to 3 times.
// Once retries are exhausted the last response is returned without an error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	bo := newRetryBackOff()

	var (
		authRetried      bool
		forceRefresh     bool
		rateLimitRetries int
		serverRetries    int
	)

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Request cancelled while waiting for the rate limiter").
				Mark(ierr.ErrHTTPClient)
		}

		token, err := c.credentials.Token(ctx, forceRefresh)
		if err != nil {
			return nil, err
		}
		forceRefresh = false

		resp, err := c.send(ctx, req, token.Value)
		if err != nil {
			return nil, err
		}

		// advanced on every attempt so the series stays at 2^attempt
		delay := bo.NextBackOff()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if authRetried {
				return resp, nil
			}
			authRetried = true
			forceRefresh = true
			c.credentials.Invalidate(ctx)
			c.logger.Warnw("kiwify rejected access token, refreshing",
				"path", req.Path,
				"status_code", resp.StatusCode,
				"attempt", attempt)
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			if rateLimitRetries >= maxRateLimitRetries {
				return resp, nil
			}
			rateLimitRetries++
			if retryAfter, ok := parseRetryAfter(resp); ok {
				delay = retryAfter
			}

		case resp.StatusCode >= 500:
			if serverRetries >= maxServerErrorRetries {
				return resp, nil
			}
			serverRetries++

		default:
			return resp, nil
		}

		c.logger.Warnw("retrying kiwify request",
			"method", req.Method,
			"path", req.Path,
			"status_code", resp.StatusCode,
			"attempt", attempt,
			"backoff", delay.String())

		if err := c.sleep(ctx, delay); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Request cancelled during retry backoff").
				Mark(ierr.ErrHTTPClient)
		}
	}
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(resp *Response) (time.Duration, bool) {
	raw := strings.TrimSpace(resp.Header.Get(types.HeaderRetryAfter))
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, false
	}
	if seconds > maxRetryAfter.Seconds() {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func (c *Client) send(ctx context.Context, req Request, accessToken string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			if v != "" {
				q.Set(k, v)
			}
		}
		u += "?" + q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := jsonCodec.Marshal(req.Body)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to encode Kiwify request body").
				Mark(ierr.ErrInternal)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create Kiwify request").
			Mark(ierr.ErrInternal)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(types.HeaderAuthorization, "Bearer "+accessToken)
	httpReq.Header.Set(types.HeaderKiwifyAccountID, c.accountID)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Errorw("kiwify request failed",
			"method", method,
			"path", req.Path,
			"error", err)
		return nil, ierr.WithError(err).
			WithHint("Failed to reach Kiwify").
			WithReportableDetails(map[string]interface{}{"path": req.Path}).
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read Kiwify response").
			Mark(ierr.ErrHTTPClient)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// statusError converts a non-2xx response into a marked error
func statusError(resp *Response, operation string, details map[string]interface{}) error {
	var errResp ErrorResponse
	_ = jsonCodec.Unmarshal(resp.Body, &errResp)

	message := errResp.Message
	if message == "" {
		message = errResp.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	if details == nil {
		details = map[string]interface{}{}
	}
	details["status_code"] = resp.StatusCode
	details["message"] = message

	mark := ierr.ErrHTTPClient
	switch resp.StatusCode {
	case http.StatusNotFound:
		mark = ierr.ErrNotFound
	case http.StatusUnauthorized:
		mark = ierr.ErrUnauthorized
	case http.StatusForbidden:
		mark = ierr.ErrPermissionDenied
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		mark = ierr.ErrValidation
	}

	return ierr.NewErrorf("kiwify %s failed with status %d", operation, resp.StatusCode).
		WithHintf("Kiwify API error: %s", message).
		WithReportableDetails(details).
		Mark(mark)
}

// listQuery renders ListParams. Both dates are always sent; missing ones
// default to a window ending now.
func (c *Client) listQuery(params ListParams) map[string]string {
	end := c.now().UTC()
	if params.EndDate != nil {
		end = params.EndDate.UTC()
	}
	start := end.Add(-DefaultListWindow)
	if params.StartDate != nil {
		start = params.StartDate.UTC()
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = c.pageSize
	}

	query := map[string]string{
		"per_page":        strconv.Itoa(perPage),
		"start_date":      start.Format(listDateLayout),
		"end_date":        end.Format(listDateLayout),
		"subscription_id": params.SubscriptionID,
		"external_id":     params.ExternalID,
		"customer_email":  params.CustomerEmail,
	}
	if params.Cursor != "" {
		query["cursor"] = params.Cursor
	} else {
		page := params.Page
		if page < 1 {
			page = 1
		}
		query["page"] = strconv.Itoa(page)
	}
	return query
}

func (c *Client) list(ctx context.Context, path string, params ListParams) (*Page, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  c.listQuery(params),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(resp, "list "+strings.TrimPrefix(path, "/"), map[string]interface{}{
			"page":   params.Page,
			"cursor": params.Cursor,
		})
	}

	page, err := parsePage(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("fetched kiwify page",
		"path", path,
		"page", params.Page,
		"items", len(page.Items),
		"next_page", page.NextPage,
		"has_more", page.HasMore)

	return page, nil
}

// ListSales lists sales (subscriptions) updated within the date window
func (c *Client) ListSales(ctx context.Context, params ListParams) (*Page, error) {
	return c.list(ctx, SalesPath, params)
}

// ListPayments lists payments. Billing sync derives payments from sales and
// does not call this.
func (c *Client) ListPayments(ctx context.Context, params ListParams) (*Page, error) {
	return c.list(ctx, PaymentsPath, params)
}

// GetSale fetches one sale by id
func (c *Client) GetSale(ctx context.Context, saleID string) (Payload, error) {
	if saleID == "" {
		return nil, ierr.NewError("sale id is required").
			WithHint("Provide the Kiwify sale or subscription id").
			Mark(ierr.ErrValidation)
	}

	resp, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   SalesPath + "/" + url.PathEscape(saleID),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(resp, "get sale", map[string]interface{}{"sale_id": saleID})
	}

	payload, err := parseObject(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Infow("retrieved kiwify sale", "sale_id", saleID)
	return payload, nil
}

// CancelSubscription cancels a subscription upstream
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Provide the Kiwify subscription id").
			Mark(ierr.ErrValidation)
	}

	resp, err := c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   SubscriptionsPath + "/" + url.PathEscape(subscriptionID),
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return statusError(resp, "cancel subscription", map[string]interface{}{"subscription_id": subscriptionID})
	}

	c.logger.Infow("cancelled kiwify subscription", "subscription_id", subscriptionID)
	return nil
}

// TokenMetadata exposes the credential cache state when the token provider
// supports it
func (c *Client) TokenMetadata(ctx context.Context, forceRefresh bool) (*TokenMetadata, error) {
	type metadataProvider interface {
		Metadata(ctx context.Context, forceRefresh bool) (*TokenMetadata, error)
	}
	mp, ok := c.credentials.(metadataProvider)
	if !ok {
		return nil, ierr.NewError("token metadata not supported").
			WithHint(fmt.Sprintf("%T does not expose token metadata", c.credentials)).
			Mark(ierr.ErrInvalidOperation)
	}
	return mp.Metadata(ctx, forceRefresh)
}
