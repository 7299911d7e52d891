package kiwify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, raw string) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, jsonCodec.Unmarshal([]byte(raw), &p))
	return p
}

func TestResolvePlan(t *testing.T) {
	mappings := map[string]types.SubscriptionPlan{
		"plan_m": types.SubscriptionPlanPremiumMonthly,
		"plan_y": types.SubscriptionPlanPremiumAnnual,
	}

	tests := []struct {
		name        string
		payload     Payload
		want        types.SubscriptionPlan
		wantMatched bool
	}{
		{
			name:        "mapped plan id",
			payload:     Payload{"plan_id": "plan_y"},
			want:        types.SubscriptionPlanPremiumAnnual,
			wantMatched: true,
		},
		{
			name:        "mapped nested plan id",
			payload:     Payload{"subscription": map[string]interface{}{"plan": map[string]interface{}{"id": "plan_m"}}},
			want:        types.SubscriptionPlanPremiumMonthly,
			wantMatched: true,
		},
		{
			name:        "quarterly frequency",
			payload:     Payload{"plan_id": "unknown", "plan": map[string]interface{}{"frequency": "Quarterly"}},
			want:        types.SubscriptionPlanPremiumQuarterly,
			wantMatched: true,
		},
		{
			name:        "annual product name",
			payload:     Payload{"product": map[string]interface{}{"name": "NutriPlan Annual"}},
			want:        types.SubscriptionPlanPremiumAnnual,
			wantMatched: true,
		},
		{
			name:        "yearly frequency",
			payload:     Payload{"frequency": "yearly"},
			want:        types.SubscriptionPlanPremiumAnnual,
			wantMatched: true,
		},
		{
			name:        "nothing matches defaults to monthly",
			payload:     Payload{"plan_id": "mystery"},
			want:        types.SubscriptionPlanPremiumMonthly,
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, matched := ResolvePlan(tt.payload, mappings)
			assert.Equal(t, tt.want, plan)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    types.SubscriptionStatus
	}{
		{"approved", Payload{"status": "approved"}, types.SubscriptionStatusActive},
		{"paid upper case", Payload{"order_status": "PAID"}, types.SubscriptionStatusActive},
		{"active nested", Payload{"subscription": map[string]interface{}{"status": "active"}}, types.SubscriptionStatusActive},
		{"canceled american spelling", Payload{"status": "canceled"}, types.SubscriptionStatusCancelled},
		{"expired", Payload{"subscription_status": "expired"}, types.SubscriptionStatusCancelled},
		{"past due", Payload{"status": "past_due"}, types.SubscriptionStatusPastDue},
		{"overdue", Payload{"payment_status": "overdue"}, types.SubscriptionStatusPastDue},
		{"waiting payment", Payload{"status": "waiting_payment"}, types.SubscriptionStatusIncomplete},
		{"unpaid is not paid", Payload{"status": "unpaid"}, types.SubscriptionStatusIncomplete},
		{"inactive is not active", Payload{"status": "inactive"}, types.SubscriptionStatusIncomplete},
		{"inactive subscription cancelled", Payload{"subscription_status": "inactive", "status": "cancelled"}, types.SubscriptionStatusCancelled},
		{"no status", Payload{}, types.SubscriptionStatusIncomplete},
		{"non string status", Payload{"status": map[string]interface{}{"x": 1}}, types.SubscriptionStatusIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatus(tt.payload))
		})
	}
}

func TestIsSettledCharge(t *testing.T) {
	assert.True(t, IsSettledCharge(Payload{"status": "approved"}))
	assert.True(t, IsSettledCharge(Payload{"payment": map[string]interface{}{"status": "completed"}}))
	assert.False(t, IsSettledCharge(Payload{"status": "active"}))
	assert.False(t, IsSettledCharge(Payload{"status": "refused"}))
	assert.False(t, IsSettledCharge(Payload{"status": "unpaid"}))
}

func TestResolveTimestamps(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	t.Run("explicit period", func(t *testing.T) {
		start, end := ResolveTimestamps(Payload{
			"current_period_start": "2026-05-01T00:00:00Z",
			"current_period_end":   "2026-06-01T00:00:00Z",
			"created_at":           "2026-01-01T00:00:00Z",
		}, now)
		assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), start)
		require.NotNil(t, end)
		assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *end)
	})

	t.Run("approval date and next payment", func(t *testing.T) {
		start, end := ResolveTimestamps(Payload{
			"approved_date": "2026-05-02 13:45:00",
			"next_payment":  "2026-06-02",
		}, now)
		assert.Equal(t, time.Date(2026, 5, 2, 13, 45, 0, 0, time.UTC), start)
		require.NotNil(t, end)
		assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), *end)
	})

	t.Run("epoch seconds", func(t *testing.T) {
		start, _ := ResolveTimestamps(Payload{"created_at": json.Number("1767225600")}, now)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	})

	t.Run("falls back to now and open end", func(t *testing.T) {
		start, end := ResolveTimestamps(Payload{"created_at": "not a date"}, now)
		assert.Equal(t, now, start)
		assert.Nil(t, end)
	})
}

func TestResolveAmountCents(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int64
		wantOK bool
	}{
		{"integer cents", `{"amount_cents": 4990}`, 4990, true},
		{"numeric string cents", `{"charge_amount": "12990"}`, 12990, true},
		{"nested cents", `{"payment": {"charge_amount": 990}}`, 990, true},
		{"cents preferred over decimal", `{"amount": 49.9, "amount_cents": 4990}`, 4990, true},
		{"decimal amount", `{"amount": 49.9}`, 4990, true},
		{"decimal string amount", `{"price": "129.95"}`, 12995, true},
		{"comma decimal", `{"amount": "19,90"}`, 1990, true},
		{"rounding", `{"amount": 10.005}`, 1001, true},
		{"garbage", `{"amount": "free"}`, 0, false},
		{"missing", `{}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveAmountCents(mustPayload(t, tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "BRL", NormalizeCurrency(""))
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.Equal(t, "EUR", ResolveCurrency(Payload{"payment": map[string]interface{}{"currency": "eur"}}))
	assert.Equal(t, "BRL", ResolveCurrency(Payload{}))
}

func TestExtractCustomerEmail(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{"nested customer", Payload{"customer": map[string]interface{}{"email": "Ana@Example.com"}}, "ana@example.com"},
		{"nested buyer", Payload{"buyer": map[string]interface{}{"email_address": "bia@example.com"}}, "bia@example.com"},
		{"flat field", Payload{"customer_email": "caio@example.com"}, "caio@example.com"},
		{"nested wins over flat", Payload{"customer": map[string]interface{}{"email": "a@x.com"}, "email": "b@x.com"}, "a@x.com"},
		{"invalid email skipped", Payload{"customer": map[string]interface{}{"email": "n/a"}, "email": "d@x.com"}, "d@x.com"},
		{"missing", Payload{"customer": "not an object"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCustomerEmail(tt.payload))
		})
	}
}

func TestIdentifiers(t *testing.T) {
	p := mustPayload(t, `{
		"id": "sale_1",
		"order_id": "ord_1",
		"subscription_id": "subs_1",
		"customer": {"external_id": 42},
		"charges": {"future": [{"charge_date": "2026-07-01"}]}
	}`)

	assert.Equal(t, "subs_1", ResolveSubscriptionID(p))
	assert.Equal(t, "ord_1", ResolveOrderID(p))
	assert.Equal(t, "ord_1", ResolveTransactionID(p))
	assert.Equal(t, "42", ResolveExternalUserID(p))

	_, end := ResolveTimestamps(p, time.Now())
	require.NotNil(t, end)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), *end)

	sale := Payload{"id": "sale_2"}
	assert.Equal(t, "sale_2", ResolveSubscriptionID(sale))
	assert.Equal(t, "sale_2", ResolveOrderID(sale))
}
