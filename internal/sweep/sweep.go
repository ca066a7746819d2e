// Package sweep schedules the registry sweep that removes channels
// which have sat empty beyond their TTL.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"relayd/pkg/chat"
	"relayd/pkg/logger"
)

// Start starts the sweep scheduler. Returns a cancel func. The cron
// expression is validated up front; removal of persisted records
// happens through the server's channel hooks.
func Start(ctx context.Context, cronExpr string, ttl time.Duration, srv *chat.Server) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cronExpr)
	}

	logger.Info("sweep_enabled", "cron", cronExpr, "empty_ttl", ttl.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, ttl, srv)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string, ttl time.Duration, srv *chat.Server) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("sweep_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			RunOnce(srv, ttl)
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep and returns the removed channel
// names. The admin surface triggers it on demand via POST /v1/sweep.
func RunOnce(srv *chat.Server, ttl time.Duration) []string {
	removed := srv.SweepEmptyChannels(ttl)
	if len(removed) > 0 {
		logger.Info("sweep_removed_channels", "count", len(removed), "channels", removed)
	} else {
		logger.Debug("sweep_no_candidates")
	}
	return removed
}
