package kiwify

// Field tables for the resolvers in normalize.go. Each entry is a dot path into
// a Payload and entries are tried in order; the first non-empty value wins.
// New upstream shapes are supported by extending these tables.
var (
	subscriptionIDFields = []string{
		"subscription_id",
		"subscriptionId",
		"subscription.id",
		"id",
	}

	orderIDFields = []string{
		"order_id",
		"orderId",
		"order.id",
		"sale_id",
		"reference",
		"id",
	}

	transactionIDFields = []string{
		"transaction_id",
		"transactionId",
		"payment.transaction_id",
		"payment.id",
		"charge_id",
		"payment_id",
		"order_id",
		"id",
	}

	planIDFields = []string{
		"plan_id",
		"planId",
		"plan.id",
		"subscription.plan.id",
		"subscription.plan_id",
		"product.plan_id",
		"offer_id",
		"offer.id",
		"product_id",
		"product.id",
	}

	// billingFrequencyFields hold free text such as "monthly" or a plan name
	billingFrequencyFields = []string{
		"plan.frequency",
		"subscription.plan.frequency",
		"frequency",
		"billing_frequency",
		"recurrence",
		"interval",
		"plan.interval",
		"plan.name",
		"plan_name",
		"subscription.plan.name",
		"product.name",
		"product_name",
	}

	statusFields = []string{
		"status",
		"order_status",
		"sale_status",
		"subscription_status",
		"subscription.status",
		"payment_status",
		"payment.status",
	}

	periodStartFields = []string{
		"current_period_start",
		"subscription.current_period_start",
		"period_start",
		"start_date",
		"subscription.start_date",
		"started_at",
		"approved_date",
		"approved_at",
		"payment.approved_at",
		"created_at",
		"created_date",
		"createdAt",
	}

	periodEndFields = []string{
		"current_period_end",
		"subscription.current_period_end",
		"period_end",
		"next_payment",
		"next_payment_date",
		"subscription.next_payment",
		"charges.future.0.charge_date",
		"expiration_date",
		"expires_at",
		"subscription.expiration_date",
	}

	// eventTimeFields drive the incremental watermark for subscriptions
	eventTimeFields = []string{
		"updated_at",
		"updatedAt",
		"updated_date",
		"subscription.updated_at",
		"approved_date",
		"approved_at",
		"created_at",
		"created_date",
		"createdAt",
	}

	paidAtFields = []string{
		"paid_at",
		"payment.paid_at",
		"approved_date",
		"approved_at",
		"payment.approved_at",
		"updated_at",
		"created_at",
	}

	amountCentsFields = []string{
		"amount_cents",
		"amountCents",
		"payment.amount_cents",
		"charge_amount",
		"payment.charge_amount",
		"net_amount",
		"payment.net_amount",
		"price_cents",
		"total_cents",
	}

	amountDecimalFields = []string{
		"amount",
		"payment.amount",
		"total",
		"price",
		"value",
		"plan.price",
		"product.price",
	}

	currencyFields = []string{
		"currency",
		"payment.currency",
		"plan.currency",
		"product.currency",
	}

	// customerObjectFields are nested objects that may carry the buyer identity
	customerObjectFields = []string{
		"customer",
		"user",
		"buyer",
		"client",
		"subscriber",
		"subscription.customer",
	}

	customerEmailKeys = []string{
		"email",
		"email_address",
		"mail",
	}

	flatEmailFields = []string{
		"customer_email",
		"customerEmail",
		"buyer_email",
		"user_email",
		"email",
	}

	externalIDFields = []string{
		"external_id",
		"externalId",
		"customer.external_id",
		"customer.metadata.user_id",
		"metadata.user_id",
		"metadata.userId",
		"metadata.external_id",
		"tracking.external_id",
		"custom_fields.user_id",
		"user_id",
	}
)

// Substrings tested, in order, against the concatenated status text
var (
	activeStatusMarkers    = []string{"approved", "paid", "completed", "active"}
	cancelledStatusMarkers = []string{"cancel", "expire"}
	pastDueStatusMarkers   = []string{"past_due", "overdue"}

	settledChargeMarkers = []string{"approved", "paid", "completed"}

	// negatedStatusMarkers are removed before matching so "unpaid" is not read as
	// "paid" and "inactive" is not read as "active"
	negatedStatusMarkers = []string{"unpaid", "not_paid", "inactive", "not_active"}
)

// Substrings tested against billing frequency text
var (
	monthlyFrequencyMarkers   = []string{"month"}
	quarterlyFrequencyMarkers = []string{"quarter"}
	annualFrequencyMarkers    = []string{"year", "annual"}
)
