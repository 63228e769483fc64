package workers

import (
	"context"
	"log/slog"
	"time"

	"adreel/contexts/ads-accounts/link-service/application"
	"adreel/contexts/ads-accounts/link-service/domain/entities"
	"adreel/contexts/ads-accounts/link-service/ports"
)

type LinkReconciler interface {
	Reconcile(ctx context.Context, userID string) (entities.ClientAccount, error)
}

// PendingLinkPoller reconciles accounts waiting on an invitation, plus
// LINKED accounts whose last sync is older than SyncInterval so that a
// revoked link surfaces as REFUSED.
type PendingLinkPoller struct {
	Accounts     ports.ClientAccountRepository
	Reconciler   LinkReconciler
	Clock        ports.Clock
	BatchSize    int
	SyncInterval time.Duration
	Logger       *slog.Logger
}

type PollSummary struct {
	Checked int
	Changed int
	Failed  int
}

func (p PendingLinkPoller) RunOnce(ctx context.Context) (PollSummary, error) {
	logger := application.ResolveLogger(p.Logger)
	limit := p.BatchSize
	if limit <= 0 {
		limit = 50
	}
	interval := p.SyncInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	now := time.Now().UTC()
	if p.Clock != nil {
		now = p.Clock.Now().UTC()
	}

	candidates, err := p.Accounts.ListSyncCandidates(ctx, ports.SyncCandidates{
		Limit:              limit,
		LinkedSyncedBefore: now.Add(-interval),
	})
	if err != nil {
		logger.Error("link poll list failed",
			"event", "link_poll_list_failed",
			"module", "ads-accounts/link-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return PollSummary{}, err
	}

	summary := PollSummary{}
	for _, account := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++
		updated, err := p.Reconciler.Reconcile(ctx, account.UserID)
		if err != nil {
			summary.Failed++
			logger.Warn("link poll reconcile failed",
				"event", "link_poll_reconcile_failed",
				"module", "ads-accounts/link-service",
				"layer", "worker",
				"user_id", account.UserID,
				"error", err.Error(),
			)
			continue
		}
		if updated.LinkStatus != account.LinkStatus {
			summary.Changed++
		}
	}

	if summary.Checked > 0 {
		logger.Info("link poll cycle completed",
			"event", "link_poll_completed",
			"module", "ads-accounts/link-service",
			"layer", "worker",
			"checked_count", summary.Checked,
			"changed_count", summary.Changed,
			"failed_count", summary.Failed,
		)
	}
	return summary, nil
}
