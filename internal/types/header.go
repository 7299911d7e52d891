package types

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	HeaderCronSecret    = "X-Cron-Secret"
	HeaderRetryAfter    = "Retry-After"

	// HeaderKiwifyAccountID scopes every upstream call to the merchant account
	HeaderKiwifyAccountID = "x-kiwify-account-id"
)
