package types

import (
	"fmt"
	"sort"
	"strings"
)

// LockScope represents the scope of a database advisory lock
type LockScope string

const (
	// LockScopeBillingSync guards a billing sync run against a concurrent one
	LockScopeBillingSync LockScope = "billing_sync"
)

// GenerateLockKey builds a deterministic key from a scope and parameters in the
// form scope:key1=value1:key2=value2. Postgres hashes it with hashtext().
func GenerateLockKey(scope LockScope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	return b.String()
}

// TableName represents a database table name
type TableName string

const (
	TableNameSubscriptions TableName = "subscriptions"
	TableNamePayments      TableName = "payments"
	TableNameSyncState     TableName = "billing_sync_state"
	TableNameProfiles      TableName = "profiles"
)
