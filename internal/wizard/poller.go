package wizard

import (
	"context"
	"time"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
)

// StatusFetcher reads the current request status once.
type StatusFetcher func(ctx context.Context) (*models.RequestStatusInfo, error)

// GateResult is the first non-waiting status observed by a poll.
type GateResult struct {
	Decision GateDecision              `json:"decision"`
	Status   *models.RequestStatusInfo `json:"status,omitempty"`
	Fetches  int                       `json:"-"`
}

// StatusPoller repeats a status fetch on a fixed interval until the gate opens
// or closes for good.
type StatusPoller struct {
	interval time.Duration
	logger   logger.Logger
}

func NewStatusPoller(interval time.Duration, log logger.Logger) *StatusPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusPoller{
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"component": "status-poller"}),
	}
}

// Wait fetches immediately and then once per interval. It returns on the first
// rejected or proceed decision, or with ctx's error once ctx is done; no fetch is
// issued after either. Fetch errors are logged and the next tick retries.
func (p *StatusPoller) Wait(ctx context.Context, fetch StatusFetcher) (*GateResult, error) {
	metrics.StatusPollsActive.Inc()
	defer metrics.StatusPollsActive.Dec()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	fetches := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fetches++
		info, err := fetch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.StatusPollTicks.WithLabelValues("error").Inc()
			p.logger.Warn("request status fetch failed", map[string]interface{}{
				"attempt": fetches,
				"error":   err.Error(),
			})
		default:
			decision := DecideGate(info)
			metrics.StatusPollTicks.WithLabelValues(string(decision)).Inc()
			if decision != GateWaiting {
				p.logger.Info("request status settled", map[string]interface{}{
					"decision": string(decision),
					"attempts": fetches,
				})
				return &GateResult{Decision: decision, Status: info, Fetches: fetches}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
