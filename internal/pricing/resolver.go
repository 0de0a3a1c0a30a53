// Package pricing implements the tiered feature access resolver.
//
// The resolver keeps a freshness-bounded, revalidating cache of the
// authenticated user's tier and of the tier catalog, publishes the resolved
// tier key into the shared auth state, and answers feature-gating queries
// against the cached tier. No failure in here may take the application down:
// remote errors keep the last cached value visible and raise a notification,
// unknown tier keys silently fall back to the free tier.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/closetiq/closetiq/internal/auth"
	"github.com/closetiq/closetiq/internal/models"
	"github.com/closetiq/closetiq/internal/notify"
	"github.com/closetiq/closetiq/internal/tierapi"
)

// Query keys for the pricing cache.
const (
	QueryKeyUserTier    = "pricing/user-tier"
	QueryKeyTierCatalog = "pricing/tier-catalog"
)

// Freshness policy constants.
const (
	// UserTierStaleAfter is the freshness window for the user tier query.
	UserTierStaleAfter = 2 * time.Minute
	// UserTierRevalidateEvery is the scheduled revalidation interval for the
	// user tier; it also bounds how soon a failed fetch is retried.
	UserTierRevalidateEvery = 5 * time.Minute
	// UserTierEvictAfter drops the cached user tier after this much disuse.
	UserTierEvictAfter = 10 * time.Minute

	// CatalogStaleAfter is the freshness window for the near-static catalog.
	CatalogStaleAfter = time.Hour
	// CatalogRevalidateEvery is the scheduled catalog revalidation interval.
	CatalogRevalidateEvery = 30 * time.Minute
	// CatalogEvictAfter drops the cached catalog after this much disuse.
	CatalogEvictAfter = 2 * time.Hour

	// GCInterval is how often the cache sweeps for evictable entries.
	GCInterval = time.Minute
)

// User-facing notification texts.
const (
	tierFetchFailedMessage  = "We couldn't refresh your plan details. Showing your last known plan."
	tierUpdateFailedMessage = "We couldn't change your plan. Please try again."
)

// Opts holds configuration for the resolver.
type Opts struct {
	Catalog map[models.TierKey]models.TierRecord
}

// Option configures resolver construction.
type Option func(*Opts)

// WithCatalog overrides the built-in tier catalog.
func WithCatalog(catalog map[models.TierKey]models.TierRecord) Option {
	return func(o *Opts) {
		o.Catalog = catalog
	}
}

// Resolver answers feature-gating queries against a cached, revalidating view
// of the user's tier.
type Resolver struct {
	svc      tierapi.Service
	auth     *auth.State
	notifier notify.Notifier
	catalog  map[models.TierKey]models.TierRecord
	cache    *QueryCache
}

// NewResolver creates a resolver and registers its two cached queries.
func NewResolver(svc tierapi.Service, authState *auth.State, notifier notify.Notifier, opts ...Option) *Resolver {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = models.DefaultTierCatalog()
	}

	r := &Resolver{
		svc:      svc,
		auth:     authState,
		notifier: notifier,
		catalog:  catalog,
		cache:    NewQueryCache(),
	}

	r.cache.Register(QueryKeyUserTier, Policy{
		StaleAfter:        UserTierStaleAfter,
		RetryAfter:        UserTierRevalidateEvery,
		EvictAfter:        UserTierEvictAfter,
		RevalidateOnFocus: true,
	}, r.fetchUserTier)
	// The tier key goes into the shared auth cell only when a result is
	// actually stored; a superseded fetch must not publish a stale key.
	r.cache.OnStore(QueryKeyUserTier, func(value interface{}) {
		if info, ok := value.(models.TierInfo); ok {
			r.auth.SetTierKey(info.Key)
		}
	})

	r.cache.Register(QueryKeyTierCatalog, Policy{
		StaleAfter: CatalogStaleAfter,
		RetryAfter: CatalogRevalidateEvery,
		EvictAfter: CatalogEvictAfter,
		// The catalog is near-static; refocus does not revalidate it.
		RevalidateOnFocus: false,
	}, r.fetchCatalog)

	slog.Debug("pricing.NewResolver: resolver ready", "catalog_tiers", len(catalog))
	return r
}

// FetchUserTier returns the user's normalized tier descriptor. The query only
// executes for an authenticated user; without one it is disabled, not failed.
func (r *Resolver) FetchUserTier(ctx context.Context) (models.TierInfo, error) {
	if !r.auth.Authenticated() {
		slog.Debug("Resolver.FetchUserTier skipped, not authenticated")
		return models.TierInfo{}, models.ErrNotAuthenticated
	}

	value, err := r.cache.Resolve(ctx, QueryKeyUserTier)
	if err != nil {
		return models.TierInfo{}, err
	}
	info, ok := value.(models.TierInfo)
	if !ok {
		return models.TierInfo{}, fmt.Errorf("unexpected cached value for %s", QueryKeyUserTier)
	}
	return info, nil
}

// FetchAllTiers returns the tier catalog from the remote authority, cached
// with the catalog freshness policy.
func (r *Resolver) FetchAllTiers(ctx context.Context) ([]models.TierRecord, error) {
	value, err := r.cache.Resolve(ctx, QueryKeyTierCatalog)
	if err != nil {
		return nil, err
	}
	tiers, ok := value.([]models.TierRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value for %s", QueryKeyTierCatalog)
	}
	return tiers, nil
}

// UpdateTier requests a tier change from the remote authority. Success
// publishes the new tier and invalidates the cached user tier query; failure
// leaves the cache untouched and raises a notification.
func (r *Resolver) UpdateTier(ctx context.Context, key models.TierKey) error {
	if key == "" {
		return models.ErrEmptyTierKey
	}
	if !r.auth.Authenticated() {
		return models.ErrNotAuthenticated
	}

	ut, err := r.svc.SetUserTier(ctx, key)
	if err != nil {
		slog.Error("Resolver.UpdateTier failed", "error", err, "tier", key)
		r.notifier.Failure(ctx, tierUpdateFailedMessage)
		return fmt.Errorf("update tier: %w", err)
	}

	rec := models.ResolveTierKey(r.catalog, ut.Tier)
	r.auth.SetTierKey(rec.Key)
	r.cache.Invalidate(QueryKeyUserTier)
	r.notifier.Success(ctx, fmt.Sprintf("You're now on the %s plan.", rec.DisplayName))
	slog.Info("Resolver.UpdateTier succeeded", "tier", rec.Key)
	return nil
}

// RefreshAll invalidates every cached pricing query, forcing the next read of
// each to revalidate against the remote source.
func (r *Resolver) RefreshAll() {
	r.cache.InvalidateAll()
	slog.Info("Resolver.RefreshAll: pricing caches invalidated")
}

// HasFeature reports whether the resolved tier grants the named capability.
// With no tier resolved the answer is false: gating denies by default.
func (r *Resolver) HasFeature(name models.FeatureName) bool {
	info, ok := r.resolvedTier()
	if !ok {
		return false
	}
	return info.Features.HasFeature(name)
}

// FeatureLimit returns the resolved tier's numeric ceiling for the named
// feature, or 0 when no tier is resolved or the field is not numeric.
func (r *Resolver) FeatureLimit(name models.FeatureName) int {
	info, ok := r.resolvedTier()
	if !ok {
		return 0
	}
	return info.Features.FeatureLimit(name)
}

// NotifyFocus mirrors a window refocus: stale focus-sensitive queries
// revalidate in the background.
func (r *Resolver) NotifyFocus() {
	r.cache.NotifyFocus()
}

// SetVisible records application visibility; background revalidation is
// suspended while hidden and resumed on regain.
func (r *Resolver) SetVisible(visible bool) {
	r.cache.SetVisible(visible)
}

// RevalidateUserTier is the scheduled background refresh of the user tier.
func (r *Resolver) RevalidateUserTier() {
	r.cache.Revalidate(QueryKeyUserTier)
}

// RevalidateCatalog is the scheduled background refresh of the tier catalog.
func (r *Resolver) RevalidateCatalog() {
	r.cache.Revalidate(QueryKeyTierCatalog)
}

// CollectGarbage evicts cached pricing values past their disuse window.
func (r *Resolver) CollectGarbage() {
	r.cache.GC()
}

// resolvedTier returns the cached tier descriptor without touching the
// network. Stale values count: a failing remote must not flip gating answers.
func (r *Resolver) resolvedTier() (models.TierInfo, bool) {
	value, ok := r.cache.Peek(QueryKeyUserTier)
	if !ok {
		return models.TierInfo{}, false
	}
	info, ok := value.(models.TierInfo)
	return info, ok
}

// fetchUserTier is the cache fetcher for the user tier query. Background
// revalidation reaches it directly, so the authentication gate is repeated
// here: after sign-out the query is disabled, not failed, and the remote
// service is never contacted.
func (r *Resolver) fetchUserTier(ctx context.Context) (interface{}, error) {
	if !r.auth.Authenticated() {
		slog.Debug("Resolver.fetchUserTier skipped, not authenticated")
		return nil, models.ErrNotAuthenticated
	}

	ut, err := r.svc.GetUserTier(ctx)
	if err != nil {
		slog.Error("Resolver.fetchUserTier remote call failed", "error", err)
		r.notifier.Failure(ctx, tierFetchFailedMessage)
		return nil, fmt.Errorf("fetch user tier: %w", err)
	}

	rec := models.ResolveTierKey(r.catalog, ut.Tier)
	if rec.Key != ut.Tier {
		slog.Warn("Resolver.fetchUserTier: unknown tier key, falling back to free", "remote_tier", ut.Tier)
	}

	info := models.TierInfo{
		Key:                rec.Key,
		DisplayName:        rec.DisplayName,
		Features:           rec,
		SubscriptionActive: ut.Active,
		ExpiresAt:          ut.ExpiresAt,
	}
	slog.Debug("Resolver.fetchUserTier succeeded", "tier", rec.Key, "active", ut.Active)
	return info, nil
}

// fetchCatalog is the cache fetcher for the tier catalog query.
func (r *Resolver) fetchCatalog(ctx context.Context) (interface{}, error) {
	tiers, err := r.svc.GetAllTiers(ctx)
	if err != nil {
		slog.Error("Resolver.fetchCatalog remote call failed", "error", err)
		r.notifier.Failure(ctx, tierFetchFailedMessage)
		return nil, fmt.Errorf("fetch tier catalog: %w", err)
	}
	slog.Debug("Resolver.fetchCatalog succeeded", "count", len(tiers))
	return tiers, nil
}
