// Package mapper fans per-column classification out over a bounded worker
// pool and projects the confirmed mapping onto the source table.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ledgerline/sheetmap/pkg/classify"
	"github.com/ledgerline/sheetmap/pkg/schema"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

// ColumnClassifier is the per-target-column oracle contract the
// coordinator fans out. classify.ColumnClassifier satisfies it.
type ColumnClassifier interface {
	Classify(ctx context.Context, source *tabular.Table, target *schema.TargetColumn, knownAliases []string) (string, error)
}

// CoordinatorConfig configures the fan-out.
type CoordinatorConfig struct {
	Logger     *slog.Logger
	Classifier ColumnClassifier

	// Workers bounds concurrent oracle calls. Defaults to 4.
	Workers int

	// OracleRate throttles call starts across workers, protecting the
	// oracle's rate limits. Defaults to 5 calls/second.
	OracleRate rate.Limit

	// CallTimeout bounds each classification call so one hanging call
	// cannot stall the batch indefinitely. Defaults to 90s.
	CallTimeout time.Duration
}

func (cfg *CoordinatorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Classifier == nil {
		return errors.New("classifier is required")
	}
	return nil
}

// Coordinator runs the per-column classification batch.
type Coordinator struct {
	log         *slog.Logger
	classifier  ColumnClassifier
	workers     int
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// NewCoordinator validates the config and applies defaults.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	oracleRate := cfg.OracleRate
	if oracleRate == 0 {
		oracleRate = rate.Limit(5)
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 90 * time.Second
	}
	return &Coordinator{
		log:         cfg.Logger,
		classifier:  cfg.Classifier,
		workers:     workers,
		limiter:     rate.NewLimiter(oracleRate, workers),
		callTimeout: callTimeout,
	}, nil
}

// MapAll classifies every registry column against the source table
// concurrently and returns the target->source mapping. A per-column
// failure is swallowed into "no mapping for that column" and never aborts
// sibling classifications; all dispatched tasks are drained before
// returning. When updateAliases is set, each successful pair is appended
// to the partition in registry order, so the dedup result is
// deterministic regardless of completion order.
func (c *Coordinator) MapAll(ctx context.Context, source *tabular.Table, registry *schema.Registry, partition map[string][]string, updateAliases bool) (map[string]string, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]string, registry.Len())
		failed  int
	)

	var g errgroup.Group
	g.SetLimit(c.workers)

	start := time.Now()
	for _, target := range registry.Columns() {
		target := target
		g.Go(func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				c.log.Warn("column classification skipped", "target", target.Name, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()

			guessed, err := c.classifier.Classify(callCtx, source, target, partition[target.Name])
			if err != nil {
				logColumnFailure(c.log, target.Name, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			results[target.Name] = guessed
			mu.Unlock()
			return nil
		})
	}

	// Tasks never return errors; Wait only drains them.
	_ = g.Wait()

	c.log.Info("column mapping batch complete",
		"duration", time.Since(start),
		"mapped", len(results),
		"failed", failed,
		"targets", registry.Len(),
	)

	if updateAliases && partition != nil {
		// Registry order, not completion order, so repeated runs produce
		// identical alias lists.
		for _, target := range registry.Columns() {
			guessed, ok := results[target.Name]
			if !ok {
				continue
			}
			if appendAlias(partition, target.Name, guessed) {
				target.AddVariation(guessed)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("column mapping batch interrupted: %w", err)
	}
	return results, nil
}

// appendAlias adds alias to the partition entry if absent, reporting
// whether it was added.
func appendAlias(partition map[string][]string, targetName, alias string) bool {
	for _, existing := range partition[targetName] {
		if existing == alias {
			return false
		}
	}
	partition[targetName] = append(partition[targetName], alias)
	return true
}

func logColumnFailure(log *slog.Logger, target string, err error) {
	var vf *classify.ValidationFailure
	var pf *classify.ParseFailure
	switch {
	case errors.As(err, &vf):
		log.Warn("column classification rejected", "target", target, "proposed", vf.Proposed, "reason", vf.Reason)
	case errors.As(err, &pf):
		log.Warn("column classification unparseable", "target", target, "reason", pf.Reason)
	default:
		log.Warn("column classification failed", "target", target, "error", err)
	}
}
