package advisory

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// Client wraps a Provider with a bounded timeout and a circuit breaker,
// and fails open: any provider failure, timeout or open breaker yields an
// empty candidate list, never an error. The recommendation pipeline must
// keep working with graph candidates alone when the advisory service is
// down.
type Client struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClient creates a fail-open advisory client around provider. A nil
// provider produces a client that always returns no candidates.
func NewClient(provider Provider, timeout time.Duration, logger *zap.Logger) *Client {
	name := "advisory"
	if provider != nil {
		name = provider.Name()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("advisory circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		provider: provider,
		breaker:  breaker,
		timeout:  timeout,
		logger:   logger,
	}
}

// Suggest returns replacement candidates, or an empty slice when the
// provider is unconfigured, slow, failing, or the breaker is open.
func (c *Client) Suggest(ctx context.Context, req *SuggestionRequest) []Candidate {
	if c == nil || c.provider == nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.provider.Suggest(ctx, req)
	})
	if err != nil {
		c.logger.Warn("advisory suggestion degraded",
			zap.String("provider", c.provider.Name()),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		metrics.RecordAdvisoryCall(c.provider.Name(), "degraded", time.Since(start).Seconds())
		return nil
	}

	candidates, _ := result.([]Candidate)
	metrics.RecordAdvisoryCall(c.provider.Name(), "success", time.Since(start).Seconds())
	return candidates
}
