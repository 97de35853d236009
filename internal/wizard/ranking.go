package wizard

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
)

// RankPredictor looks up one university's predicted rank.
type RankPredictor interface {
	PredictRank(ctx context.Context, token, universityName string) (string, error)
}

// RankEnricher attaches a predicted rank to every recommendation, one lookup per
// university in parallel.
type RankEnricher struct {
	predictor   RankPredictor
	concurrency int
	timeout     time.Duration
	logger      logger.Logger
}

// NewRankEnricher caps parallel lookups at concurrency. Zero or less runs every
// lookup at once so one slow university never queues the others.
func NewRankEnricher(predictor RankPredictor, concurrency int, timeout time.Duration, log logger.Logger) *RankEnricher {
	if concurrency < 0 {
		concurrency = 0
	}
	return &RankEnricher{
		predictor:   predictor,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      log.WithFields(map[string]interface{}{"component": "rank-enricher"}),
	}
}

type rankResult struct {
	name string
	rank string
	err  error
}

// Ranks returns a rank per university name. A failed or timed out lookup yields
// models.RankUnavailable for that name only.
func (e *RankEnricher) Ranks(ctx context.Context, token string, names []string) map[string]string {
	workers := e.concurrency
	if workers == 0 || workers > len(names) {
		workers = len(names)
	}
	if workers == 0 {
		return map[string]string{}
	}
	p := pool.NewWithResults[rankResult]().WithMaxGoroutines(workers)
	for _, name := range names {
		name := name
		p.Go(func() rankResult {
			lookupCtx := ctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				lookupCtx, cancel = context.WithTimeout(ctx, e.timeout)
				defer cancel()
			}
			rank, err := e.predictor.PredictRank(lookupCtx, token, name)
			return rankResult{name: name, rank: rank, err: err}
		})
	}

	ranks := make(map[string]string, len(names))
	for _, r := range p.Wait() {
		if r.err != nil {
			metrics.RankingLookups.WithLabelValues("unavailable").Inc()
			e.logger.Warn("rank lookup failed", map[string]interface{}{
				"university": r.name,
				"error":      r.err.Error(),
			})
			ranks[r.name] = models.RankUnavailable
			continue
		}
		metrics.RankingLookups.WithLabelValues("ok").Inc()
		ranks[r.name] = r.rank
	}
	return ranks
}

// Enrich returns the recommendations in input order with ranks attached.
func (e *RankEnricher) Enrich(ctx context.Context, token string, universities []models.UniversityPrediction) []models.RankedUniversity {
	names := make([]string, 0, len(universities))
	for _, u := range universities {
		names = append(names, u.Name)
	}
	ranks := e.Ranks(ctx, token, names)

	out := make([]models.RankedUniversity, 0, len(universities))
	for _, u := range universities {
		rank, ok := ranks[u.Name]
		if !ok {
			rank = models.RankUnavailable
		}
		out = append(out, models.RankedUniversity{UniversityPrediction: u, Rank: rank})
	}
	return out
}
