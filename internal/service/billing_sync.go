package service

import (
	"context"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/dto"
	"github.com/nutriplan/nutriplan/internal/domain/payment"
	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/integration/kiwify"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/samber/lo"
)

const (
	defaultLookbackHours = 24
	defaultSyncOverlap   = 5 * time.Minute
)

// BillingSyncService reconciles Kiwify subscriptions and payments with the local ledger
type BillingSyncService interface {
	// RunIncrementalSync processes everything updated since the stored watermark
	RunIncrementalSync(ctx context.Context, opts dto.IncrementalSyncOptions) (*dto.SyncResult, error)

	// RunManualSync re-syncs specific users, emails or subscriptions. It never moves the watermark.
	RunManualSync(ctx context.Context, opts dto.ManualSyncOptions) (*dto.SyncResult, error)

	// CancelSubscription cancels the user's subscription upstream, then re-syncs
	// the user so the local row reflects the cancellation
	CancelSubscription(ctx context.Context, userID string) (*dto.SyncResult, error)

	// TokenMetadata reports the access token in use, optionally forcing a new exchange
	TokenMetadata(ctx context.Context, forceRefresh bool) (*dto.TokenMetadataResponse, error)
}

type billingSyncService struct {
	ServiceParams
	paginator    *kiwify.Paginator
	planMappings map[string]types.SubscriptionPlan
	now          func() time.Time
}

func NewBillingSyncService(params ServiceParams) BillingSyncService {
	return &billingSyncService{
		ServiceParams: params,
		paginator:     kiwify.NewPaginator(params.Logger),
		planMappings:  planMappingsFromConfig(params.Config.Kiwify.PlanMappings, params.Logger),
		now:           time.Now,
	}
}

func planMappingsFromConfig(raw map[string]string, log *logger.Logger) map[string]types.SubscriptionPlan {
	mappings := make(map[string]types.SubscriptionPlan, len(raw))
	for planID, tier := range raw {
		plan := types.SubscriptionPlan(strings.ToLower(strings.TrimSpace(tier)))
		if err := plan.Validate(); err != nil {
			log.Warnw("ignoring invalid plan mapping", "plan_id", planID, "tier", tier)
			continue
		}
		mappings[planID] = plan
	}
	return mappings
}

// correlation links a provider subscription to the local row written for it in this run
type correlation struct {
	userID         string
	subscriptionID string
	plan           types.SubscriptionPlan
	status         types.SubscriptionStatus
}

// syncRun is the per-run state. It is never shared between runs.
type syncRun struct {
	result       *dto.SyncResult
	resolver     *UserResolver
	correlations map[string]correlation
	seen         map[string]struct{}
	dedupe       bool
	logger       *logger.Logger
}

func (s *billingSyncService) newRun(ctx context.Context, mode types.SyncMode, allowList []string) (context.Context, *syncRun) {
	ctx = types.SetSyncRunID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SYNC_RUN))
	return ctx, &syncRun{
		result: &dto.SyncResult{
			Mode:      mode,
			StartedAt: s.now().UTC(),
		},
		resolver:     NewUserResolver(s.UserRepo, s.Logger, allowList),
		correlations: make(map[string]correlation),
		seen:         make(map[string]struct{}),
		dedupe:       mode == types.SyncModeManual,
		logger:       s.Logger.WithContext(ctx),
	}
}

// acquire takes the cross-run lock when exclusive runs are enabled
func (s *billingSyncService) acquire(ctx context.Context) (func(), error) {
	if !s.Config.BillingSync.ExclusiveRuns || s.SyncLocker == nil {
		return func() {}, nil
	}

	key := types.GenerateLockKey(types.LockScopeBillingSync, map[string]interface{}{
		"provider": types.BillingProviderKiwify,
	})
	release, ok, err := s.SyncLocker.TryLock(ctx, key)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to acquire the billing sync lock").
			Mark(ierr.ErrDatabase)
	}
	if !ok {
		return nil, ierr.NewError("sync already in progress").
			WithHint("Another billing sync is running, try again later").
			WithReportableDetails(map[string]interface{}{"lock_key": key}).
			Mark(ierr.ErrAlreadyExists)
	}
	return release, nil
}

func (s *billingSyncService) RunIncrementalSync(ctx context.Context, opts dto.IncrementalSyncOptions) (*dto.SyncResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, run := s.newRun(ctx, types.SyncModeIncremental, nil)
	now := run.result.StartedAt

	state, err := s.SyncStateRepo.Get(ctx, syncstate.DefaultID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	since, until := s.incrementalWindow(opts, state, now)
	run.result.Since = &since
	run.result.Until = &until

	run.logger.Infow("starting incremental billing sync",
		"since", since,
		"until", until)

	params := kiwify.ListParams{StartDate: &since, EndDate: &until}
	if err := s.paginator.ForEach(ctx, s.KiwifyClient.ListSales, params, func(ctx context.Context, item kiwify.Payload) error {
		return s.processSubscription(ctx, run, item)
	}); err != nil {
		run.logger.Errorw("incremental billing sync aborted", "error", err, "result", run.result)
		return nil, err
	}

	if err := s.saveWatermark(ctx, state, run.result, now); err != nil {
		return nil, err
	}

	run.result.FinishedAt = s.now().UTC()
	s.logResult(run)
	return run.result, nil
}

// incrementalWindow computes [since, until]. Since comes from the explicit
// option, else the stored watermark, else the lookback; the overlap is then
// subtracted to absorb clock skew and late events.
func (s *billingSyncService) incrementalWindow(opts dto.IncrementalSyncOptions, state *syncstate.SyncState, now time.Time) (time.Time, time.Time) {
	until := now
	if opts.Until != nil {
		until = opts.Until.UTC()
	}

	var since time.Time
	switch {
	case opts.Since != nil:
		since = opts.Since.UTC()
	case state != nil && state.LastSyncedAt != nil:
		since = state.LastSyncedAt.UTC()
	default:
		hours := opts.LookbackHours
		if hours <= 0 {
			hours = s.Config.BillingSync.DefaultLookbackHours
		}
		if hours <= 0 {
			hours = defaultLookbackHours
		}
		since = now.Add(-time.Duration(hours) * time.Hour)
	}

	overlap := s.Config.BillingSync.Overlap
	if overlap < 0 {
		overlap = defaultSyncOverlap
	}
	return since.Add(-overlap), until
}

// saveWatermark records the run. lastSyncedAt only moves forward and only when
// an event time was observed.
func (s *billingSyncService) saveWatermark(ctx context.Context, state *syncstate.SyncState, result *dto.SyncResult, now time.Time) error {
	next := &syncstate.SyncState{ID: syncstate.DefaultID, LastRunAt: &now}
	if state != nil {
		next.LastSyncedAt = state.LastSyncedAt
	}

	if watermark := result.Watermark(); watermark != nil {
		if next.LastSyncedAt == nil || watermark.After(*next.LastSyncedAt) {
			next.LastSyncedAt = lo.ToPtr(watermark.UTC())
		}
	}

	if err := s.SyncStateRepo.Save(ctx, next); err != nil {
		s.Logger.WithContext(ctx).Errorw("failed to persist billing sync watermark", "error", err)
		return err
	}
	return nil
}

func (s *billingSyncService) RunManualSync(ctx context.Context, opts dto.ManualSyncOptions) (*dto.SyncResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, run := s.newRun(ctx, types.SyncModeManual, opts.UserIDs)
	run.result.Since = opts.Since
	run.result.Until = opts.Until

	run.logger.Infow("starting manual billing sync",
		"user_ids", opts.UserIDs,
		"emails", len(opts.Emails),
		"subscription_ids", opts.SubscriptionIDs)

	handler := func(ctx context.Context, item kiwify.Payload) error {
		return s.processSubscription(ctx, run, item)
	}

	for _, subscriptionID := range opts.SubscriptionIDs {
		sale, err := s.KiwifyClient.GetSale(ctx, subscriptionID)
		if err != nil {
			if ierr.IsNotFound(err) {
				run.logger.Warnw("subscription not found upstream", "subscription_id", subscriptionID)
				run.result.Errors++
				continue
			}
			return nil, err
		}
		if err := handler(ctx, sale); err != nil {
			return nil, err
		}
	}

	for _, userID := range opts.UserIDs {
		params := kiwify.ListParams{ExternalID: userID, StartDate: opts.Since, EndDate: opts.Until}
		if err := s.paginator.ForEach(ctx, s.KiwifyClient.ListSales, params, handler); err != nil {
			return nil, err
		}
	}

	for _, email := range opts.Emails {
		params := kiwify.ListParams{CustomerEmail: email, StartDate: opts.Since, EndDate: opts.Until}
		if err := s.paginator.ForEach(ctx, s.KiwifyClient.ListSales, params, handler); err != nil {
			return nil, err
		}
	}

	run.result.FinishedAt = s.now().UTC()
	s.logResult(run)
	return run.result, nil
}

func (s *billingSyncService) CancelSubscription(ctx context.Context, userID string) (*dto.SyncResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("A user id is required to cancel a subscription").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubscriptionRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() || sub.ProviderSubscriptionID == "" {
		return nil, ierr.NewError("no active subscription").
			WithHint("The user has no active paid subscription to cancel").
			WithReportableDetails(map[string]interface{}{
				"user_id": userID,
				"status":  sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.KiwifyClient.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
		return nil, err
	}
	s.Logger.WithContext(ctx).Infow("cancelled subscription upstream",
		"user_id", userID,
		"provider_subscription_id", sub.ProviderSubscriptionID)

	// the sale detail covers customers whose checkout carried no external id
	opts := dto.ManualSyncOptions{UserIDs: []string{userID}}
	if sub.ProviderOrderID != "" {
		opts.SubscriptionIDs = []string{sub.ProviderOrderID}
	}
	return s.RunManualSync(ctx, opts)
}

func (s *billingSyncService) TokenMetadata(ctx context.Context, forceRefresh bool) (*dto.TokenMetadataResponse, error) {
	meta, err := s.KiwifyClient.TokenMetadata(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	return &dto.TokenMetadataResponse{
		ExpiresAt: meta.ExpiresAt,
		Source:    meta.Source,
	}, nil
}

// processSubscription reconciles one upstream sale. Item level failures are
// counted and swallowed; only context cancellation aborts the walk.
func (s *billingSyncService) processSubscription(ctx context.Context, run *syncRun, item kiwify.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := run.result
	result.SubscriptionsFetched++

	providerSubscriptionID := kiwify.ResolveSubscriptionID(item)
	if providerSubscriptionID == "" {
		run.logger.Warnw("skipping sale without subscription id")
		result.Errors++
		return nil
	}

	if run.dedupe {
		if _, ok := run.seen[providerSubscriptionID]; ok {
			return nil
		}
		run.seen[providerSubscriptionID] = struct{}{}
	}

	userID, ok := run.resolver.Resolve(ctx, item)
	if !ok {
		run.logger.Infow("no local user for subscription",
			"provider_subscription_id", providerSubscriptionID,
			"email", kiwify.ExtractCustomerEmail(item))
		result.UsersMissing++
		return nil
	}
	result.UsersMatched++

	plan, matched := kiwify.ResolvePlan(item, s.planMappings)
	if !matched && s.Config.BillingSync.StrictPlanMapping {
		result.UnmappedPlans++
		run.logger.Warnw("unmapped plan defaulted to monthly",
			"provider_subscription_id", providerSubscriptionID,
			"provider_plan_id", kiwify.ResolvePlanID(item))
	}
	status := kiwify.ResolveStatus(item)
	start, end := kiwify.ResolveTimestamps(item, s.now())
	eventAt := kiwify.ResolveEventTime(item)

	sub, err := s.findExisting(ctx, providerSubscriptionID, userID)
	if err != nil {
		run.logger.Errorw("failed to load subscription",
			"provider_subscription_id", providerSubscriptionID,
			"user_id", userID,
			"error", err)
		result.Errors++
		return nil
	}

	isNew := sub == nil
	if isNew {
		sub = &subscription.Subscription{}
	}
	sub.UserID = userID
	sub.Plan = types.PlanForStatus(plan, status)
	sub.Status = status
	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = end
	sub.Provider = types.BillingProviderKiwify
	sub.ProviderOrderID = kiwify.ResolveOrderID(item)
	sub.ProviderSubscriptionID = providerSubscriptionID
	sub.ProviderPlanID = kiwify.ResolvePlanID(item)
	sub.LastEventAt = eventAt

	if isNew {
		err = s.SubscriptionRepo.Create(ctx, sub)
	} else {
		err = s.SubscriptionRepo.Update(ctx, sub)
	}
	if err != nil {
		run.logger.Errorw("failed to persist subscription",
			"provider_subscription_id", providerSubscriptionID,
			"user_id", userID,
			"error", err)
		result.Errors++
		return nil
	}
	result.SubscriptionsPersisted++
	result.LastSubscriptionTimestamp = latest(result.LastSubscriptionTimestamp, eventAt)

	corr := correlation{
		userID:         userID,
		subscriptionID: sub.ID,
		plan:           plan,
		status:         status,
	}
	run.correlations[providerSubscriptionID] = corr

	run.logger.Debugw("reconciled subscription",
		"provider_subscription_id", providerSubscriptionID,
		"user_id", userID,
		"plan", sub.Plan,
		"status", status,
		"created", isNew)

	if kiwify.IsSettledCharge(item) {
		s.recordPayment(ctx, run, item, corr)
	}
	return nil
}

// findExisting looks up by provider subscription id, then by user id. A nil
// subscription with a nil error means none exists.
func (s *billingSyncService) findExisting(ctx context.Context, providerSubscriptionID, userID string) (*subscription.Subscription, error) {
	sub, err := s.SubscriptionRepo.GetByProviderSubscriptionID(ctx, providerSubscriptionID)
	if err == nil {
		return sub, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	sub, err = s.SubscriptionRepo.GetByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if ierr.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// recordPayment derives a payment from a settled sale. A repeated order id is
// counted as skipped.
func (s *billingSyncService) recordPayment(ctx context.Context, run *syncRun, item kiwify.Payload, corr correlation) {
	result := run.result
	result.PaymentsFetched++

	orderID := kiwify.ResolveOrderID(item)
	if orderID == "" {
		run.logger.Warnw("skipping settled charge without order id", "user_id", corr.userID)
		result.Errors++
		return
	}

	amount, ok := kiwify.ResolveAmountCents(item)
	if !ok {
		run.logger.Warnw("settled charge has no amount", "provider_order_id", orderID)
	}

	paidAt := kiwify.ResolvePaidAt(item)
	if paidAt == nil {
		paidAt = kiwify.ResolveEventTime(item)
	}
	recordedAt := s.now().UTC()
	if paidAt != nil {
		recordedAt = paidAt.UTC()
	}

	p := &payment.Payment{
		UserID:                corr.userID,
		SubscriptionID:        corr.subscriptionID,
		Plan:                  corr.plan,
		AmountCents:           amount,
		Currency:              kiwify.ResolveCurrency(item),
		Provider:              types.BillingProviderKiwify,
		ProviderOrderID:       orderID,
		ProviderTransactionID: kiwify.ResolveTransactionID(item),
		Status:                types.PaymentStatusSucceeded,
		PaidAt:                recordedAt,
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		if ierr.IsAlreadyExists(err) {
			result.PaymentsSkipped++
			result.LastPaymentTimestamp = latest(result.LastPaymentTimestamp, paidAt)
			return
		}
		run.logger.Errorw("failed to record payment",
			"provider_order_id", orderID,
			"user_id", corr.userID,
			"error", err)
		result.Errors++
		return
	}

	result.PaymentsInserted++
	result.LastPaymentTimestamp = latest(result.LastPaymentTimestamp, paidAt)
}

func (s *billingSyncService) logResult(run *syncRun) {
	r := run.result
	run.logger.Infow("billing sync finished",
		"mode", r.Mode,
		"subscriptions_fetched", r.SubscriptionsFetched,
		"subscriptions_persisted", r.SubscriptionsPersisted,
		"payments_fetched", r.PaymentsFetched,
		"payments_inserted", r.PaymentsInserted,
		"payments_skipped", r.PaymentsSkipped,
		"users_matched", r.UsersMatched,
		"users_missing", r.UsersMissing,
		"unmapped_plans", r.UnmappedPlans,
		"errors", r.Errors,
		"duration_ms", r.FinishedAt.Sub(r.StartedAt).Milliseconds())
}

// latest returns the later of two optional instants
func latest(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return lo.ToPtr(candidate.UTC())
	}
	return current
}
