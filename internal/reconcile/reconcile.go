// Package reconcile applies freshly scraped headlines to the store.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/juicer/internal/juicer"
)

// Reconciler upserts headlines one by one and keeps track of what changed.
type Reconciler struct {
	repo   juicer.Repository
	policy juicer.DisplayTimePolicy
	now    func() time.Time

	expiryEnsured bool
}

// New creates a Reconciler writing to repo.
func New(repo juicer.Repository, policy juicer.DisplayTimePolicy) *Reconciler {
	return &Reconciler{
		repo:   repo,
		policy: policy,
		now:    time.Now,
	}
}

// MarkExpiryEnsured skips the lazy expiry index creation, e.g. because it
// was already done at startup.
func (r *Reconciler) MarkExpiryEnsured() {
	r.expiryEnsured = true
}

// Reconcile upserts every headline, in order, and counts the inserts and
// updates.
//
// Every headline gets the same fresh timestamp. Nothing is ever deleted:
// headlines that aren't seen anymore are left to expire.
//
// A store that can't be reached results in [juicer.ErrStoreUnavailable] before
// any write. A failed write stops the run and returns the counts so far along
// with [juicer.ErrStoreWrite].
func (r *Reconciler) Reconcile(ctx context.Context, headlines []juicer.Headline) (juicer.Counts, error) {
	var counts juicer.Counts

	if err := r.repo.Ping(ctx); err != nil {
		return counts, fmt.Errorf("%w: %s", juicer.ErrStoreUnavailable, err)
	}

	if !r.expiryEnsured {
		if err := r.repo.EnsureExpiry(ctx); err != nil {
			slog.WarnContext(ctx, "error ensuring expiry index, will try again next cycle", "error", err)
		} else {
			r.expiryEnsured = true
		}
	}

	now := r.now().UTC()
	for _, h := range headlines {
		h.Timestamp = now

		res, err := r.repo.UpsertHeadline(ctx, h, r.policy)
		if err != nil {
			return counts, fmt.Errorf("%w: %s", juicer.ErrStoreWrite, err)
		}
		counts.Add(res)
	}

	return counts, nil
}
