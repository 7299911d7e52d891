package kiwify

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// minEpochSeconds rejects small integers that are not plausible timestamps
const minEpochSeconds = 1_000_000_000

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// lookup walks a dot separated path. Numeric segments index into arrays.
func lookup(p Payload, path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(p)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case Payload:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// asString renders scalars as trimmed strings. Objects, arrays and empty
// strings are not values.
func asString(v interface{}) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func firstString(p Payload, paths []string) string {
	for _, path := range paths {
		if v, ok := lookup(p, path); ok {
			if s, ok := asString(v); ok {
				return s
			}
		}
	}
	return ""
}

func allStrings(p Payload, paths []string) []string {
	values := make([]string, 0, len(paths))
	for _, path := range paths {
		if v, ok := lookup(p, path); ok {
			if s, ok := asString(v); ok {
				values = append(values, s)
			}
		}
	}
	return values
}

func firstTime(p Payload, paths []string) *time.Time {
	for _, path := range paths {
		if v, ok := lookup(p, path); ok {
			if t := parseTime(v); t != nil {
				return t
			}
		}
	}
	return nil
}

// parseTime accepts the string layouts above and unix epochs in seconds or
// milliseconds
func parseTime(v interface{}) *time.Time {
	s, ok := asString(v)
	if !ok {
		return nil
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch < minEpochSeconds {
			return nil
		}
		var t time.Time
		if epoch > 1e12 {
			t = time.UnixMilli(epoch).UTC()
		} else {
			t = time.Unix(epoch, 0).UTC()
		}
		return &t
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func containsAny(haystack string, needles []string) bool {
	return lo.SomeBy(needles, func(n string) bool { return strings.Contains(haystack, n) })
}

// ResolvePlanID returns the provider plan identifier, if any
func ResolvePlanID(p Payload) string {
	return firstString(p, planIDFields)
}

// ResolvePlan maps the payload to a local tier. Configured plan id mappings
// win; otherwise the billing frequency text is inspected. When nothing matches
// the monthly tier is returned with matched=false.
func ResolvePlan(p Payload, mappings map[string]types.SubscriptionPlan) (plan types.SubscriptionPlan, matched bool) {
	for _, id := range allStrings(p, planIDFields) {
		if tier, ok := mappings[id]; ok {
			return tier, true
		}
		// config loaders lower-case map keys
		if tier, ok := mappings[strings.ToLower(id)]; ok {
			return tier, true
		}
	}

	frequency := strings.ToLower(strings.Join(allStrings(p, billingFrequencyFields), " "))
	switch {
	case containsAny(frequency, monthlyFrequencyMarkers):
		return types.SubscriptionPlanPremiumMonthly, true
	case containsAny(frequency, quarterlyFrequencyMarkers):
		return types.SubscriptionPlanPremiumQuarterly, true
	case containsAny(frequency, annualFrequencyMarkers):
		return types.SubscriptionPlanPremiumAnnual, true
	}

	return types.SubscriptionPlanPremiumMonthly, false
}

func statusText(p Payload) string {
	text := strings.ToLower(strings.Join(allStrings(p, statusFields), " "))
	for _, negated := range negatedStatusMarkers {
		text = strings.ReplaceAll(text, negated, "")
	}
	return text
}

// ResolveStatus folds every status-like field into one local status
func ResolveStatus(p Payload) types.SubscriptionStatus {
	text := statusText(p)
	switch {
	case containsAny(text, activeStatusMarkers):
		return types.SubscriptionStatusActive
	case containsAny(text, cancelledStatusMarkers):
		return types.SubscriptionStatusCancelled
	case containsAny(text, pastDueStatusMarkers):
		return types.SubscriptionStatusPastDue
	default:
		return types.SubscriptionStatusIncomplete
	}
}

// IsSettledCharge reports whether the payload's status shows captured funds
func IsSettledCharge(p Payload) bool {
	return containsAny(statusText(p), settledChargeMarkers)
}

// ResolveTimestamps returns the billing period. start falls back to now and
// end is nil for open ended subscriptions.
func ResolveTimestamps(p Payload, now time.Time) (start time.Time, end *time.Time) {
	if s := firstTime(p, periodStartFields); s != nil {
		start = *s
	} else {
		start = now.UTC()
	}
	return start, firstTime(p, periodEndFields)
}

// ResolveEventTime is the timestamp the incremental watermark advances to
func ResolveEventTime(p Payload) *time.Time {
	return firstTime(p, eventTimeFields)
}

// ResolvePaidAt is the settlement time of the charge embedded in a sale
func ResolvePaidAt(p Payload) *time.Time {
	return firstTime(p, paidAtFields)
}

// ResolveAmountCents prefers integer cent fields and falls back to decimal
// amounts multiplied by 100
func ResolveAmountCents(p Payload) (int64, bool) {
	for _, path := range amountCentsFields {
		v, ok := lookup(p, path)
		if !ok {
			continue
		}
		if d, ok := asDecimal(v); ok {
			return d.Round(0).IntPart(), true
		}
	}

	for _, path := range amountDecimalFields {
		v, ok := lookup(p, path)
		if !ok {
			continue
		}
		if d, ok := asDecimal(v); ok {
			return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), true
		}
	}

	return 0, false
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}

	s, ok := asString(v)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeCurrency upper-cases a currency code, defaulting to BRL
func NormalizeCurrency(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return DefaultCurrency
	}
	return value
}

// ResolveCurrency reads and normalizes the payload currency
func ResolveCurrency(p Payload) string {
	return NormalizeCurrency(firstString(p, currencyFields))
}

// ExtractCustomerEmail looks in nested customer objects first, then flat fields.
// The result is lower-cased.
func ExtractCustomerEmail(p Payload) string {
	for _, object := range customerObjectFields {
		for _, key := range customerEmailKeys {
			if v, ok := lookup(p, object+"."+key); ok {
				if s, ok := asString(v); ok && strings.Contains(s, "@") {
					return strings.ToLower(s)
				}
			}
		}
	}

	for _, path := range flatEmailFields {
		if v, ok := lookup(p, path); ok {
			if s, ok := asString(v); ok && strings.Contains(s, "@") {
				return strings.ToLower(s)
			}
		}
	}
	return ""
}

// ResolveExternalUserID returns the local user id passed to checkout, if any
func ResolveExternalUserID(p Payload) string {
	return firstString(p, externalIDFields)
}

func ResolveSubscriptionID(p Payload) string {
	return firstString(p, subscriptionIDFields)
}

func ResolveOrderID(p Payload) string {
	return firstString(p, orderIDFields)
}

func ResolveTransactionID(p Payload) string {
	return firstString(p, transactionIDFields)
}
