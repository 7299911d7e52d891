package kiwify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenProvider struct {
	mu          sync.Mutex
	forced      []bool
	invalidated int
	err         error
}

func (f *fakeTokenProvider) Token(_ context.Context, forceRefresh bool) (*AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.forced = append(f.forced, forceRefresh)
	value := "tok-cached"
	if forceRefresh {
		value = "tok-fresh"
	}
	return &AccessToken{Value: value, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeTokenProvider) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type upstream struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	handler  func(w http.ResponseWriter, r *http.Request, n int)
}

func newUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) *upstream {
	u := &upstream{handler: handler}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.requests = append(u.requests, r.Clone(context.Background()))
		n := len(u.requests)
		u.mu.Unlock()
		u.handler(w, r, n)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func newTestClient(t *testing.T, baseURL string, tokens TokenProvider) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(Config{
		BaseURL:           baseURL,
		AccountID:         "acc_1",
		RequestsPerMinute: 600000,
		PageSize:          25,
	}, tokens, &http.Client{Timeout: 5 * time.Second}, logger.NewNopLogger())

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	c.now = func() time.Time { return time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC) }
	return c, &delays
}

func TestDoSetsAuthAndAccountHeaders(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusOK)
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	resp, err := c.Do(context.Background(), Request{Path: "/sales"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := up.requests[0]
	assert.Equal(t, "Bearer tok-cached", req.Header.Get("Authorization"))
	assert.Equal(t, "acc_1", req.Header.Get("x-kiwify-account-id"))
}

func TestDoRetriesRateLimitFiveTimes(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c, delays := newTestClient(t, up.URL, &fakeTokenProvider{})

	resp, err := c.Do(context.Background(), Request{Path: "/sales"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 6, up.count())
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second,
	}, *delays)
}

func TestDoHonoursRetryAfter(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	c, delays := newTestClient(t, up.URL, &fakeTokenProvider{})

	resp, err := c.Do(context.Background(), Request{Path: "/sales"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []time.Duration{7 * time.Second}, *delays)
}

func TestDoRetriesServerErrorsThreeTimes(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c, delays := newTestClient(t, up.URL, &fakeTokenProvider{})

	resp, err := c.Do(context.Background(), Request{Path: "/sales"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 4, up.count())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, *delays)
}

func TestDoRefreshesTokenOnceOnAuthFailure(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, n int) {
			if n == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		tokens := &fakeTokenProvider{}
		c, delays := newTestClient(t, up.URL, tokens)

		resp, err := c.Do(context.Background(), Request{Path: "/sales"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, tokens.invalidated)
		assert.Equal(t, []bool{false, true}, tokens.forced)
		assert.Equal(t, "Bearer tok-fresh", up.requests[1].Header.Get("Authorization"))
		assert.Empty(t, *delays)
	})

	t.Run("second failure is returned", func(t *testing.T) {
		up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
			w.WriteHeader(http.StatusForbidden)
		})
		tokens := &fakeTokenProvider{}
		c, _ := newTestClient(t, up.URL, tokens)

		resp, err := c.Do(context.Background(), Request{Path: "/sales"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, 2, up.count())
		assert.Equal(t, 1, tokens.invalidated)
	})
}

func TestDoReturnsOtherStatusesImmediately(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNotFound)
	})
	c, delays := newTestClient(t, up.URL, &fakeTokenProvider{})

	resp, err := c.Do(context.Background(), Request{Path: "/sales/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, up.count())
	assert.Empty(t, *delays)
}

func TestDoFailsWhenTokenUnavailable(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusOK)
	})
	tokens := &fakeTokenProvider{err: ierr.NewError("exchange failed").Mark(ierr.ErrUnauthorized)}
	c, _ := newTestClient(t, up.URL, tokens)

	_, err := c.Do(context.Background(), Request{Path: "/sales"})
	require.Error(t, err)
	assert.True(t, ierr.IsUnauthorized(err))
	assert.Equal(t, 0, up.count())
}

func TestListSales(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"s1","amount_cents":4990},{"id":"s2"}],"pagination":{"next_page":3,"has_more":true}}`))
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	page, err := c.ListSales(context.Background(), ListParams{Page: 2, StartDate: &start, CustomerEmail: "ana@example.com"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "s1", ResolveSubscriptionID(page.Items[0]))
	assert.Equal(t, 3, page.NextPage)
	assert.True(t, page.HasMore)

	q := up.requests[0].URL.Query()
	assert.Equal(t, "/sales", up.requests[0].URL.Path)
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "25", q.Get("per_page"))
	assert.Equal(t, "2026-04-01", q.Get("start_date"))
	assert.Equal(t, "2026-04-30", q.Get("end_date"))
	assert.Equal(t, "ana@example.com", q.Get("customer_email"))
	assert.False(t, q.Has("subscription_id"))
}

func TestListSalesDefaultWindowAndCursor(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		_, _ = w.Write([]byte(`[]`))
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	_, err := c.ListSales(context.Background(), ListParams{Cursor: "abc"})
	require.NoError(t, err)

	q := up.requests[0].URL.Query()
	assert.Equal(t, "2026-01-30", q.Get("start_date"))
	assert.Equal(t, "2026-04-30", q.Get("end_date"))
	assert.Equal(t, "abc", q.Get("cursor"))
	assert.False(t, q.Has("page"))
}

func TestListSalesErrorStatus(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	_, err := c.ListSales(context.Background(), ListParams{})
	require.Error(t, err)
	assert.True(t, ierr.IsUnauthorized(err))
}

func TestListPayments(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		_, _ = w.Write([]byte(`{"data":[{"id":"p1"}]}`))
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	page, err := c.ListPayments(context.Background(), ListParams{Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/payments", up.requests[0].URL.Path)
	assert.False(t, page.HasMore)
}

func TestGetSale(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		if r.URL.Path == "/sales/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"s1","status":"paid"}}`))
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	sale, err := c.GetSale(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "paid", sale["status"])

	_, err = c.GetSale(context.Background(), "missing")
	assert.True(t, ierr.IsNotFound(err))

	_, err = c.GetSale(context.Background(), "")
	assert.True(t, ierr.IsValidation(err))
}

func TestCancelSubscription(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, up.URL, &fakeTokenProvider{})

	require.NoError(t, c.CancelSubscription(context.Background(), "subs_1"))
	assert.Equal(t, http.MethodDelete, up.requests[0].Method)
	assert.Equal(t, "/subscriptions/subs_1", up.requests[0].URL.Path)
}

func TestTokenMetadataRequiresManager(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1", &fakeTokenProvider{})
	_, err := c.TokenMetadata(context.Background(), false)
	assert.True(t, ierr.Is(err, ierr.ErrInvalidOperation))
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"3", 3 * time.Second, true},
		{"1.5", 1500 * time.Millisecond, true},
		{"", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Inf", 0, false},
		{"1e30", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			resp := &Response{Header: http.Header{}}
			if tt.value != "" {
				resp.Header.Set("Retry-After", tt.value)
			}
			got, ok := parseRetryAfter(resp)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
