package repro

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/internal/orm/modelcache"
	"github.com/conduit-lang/entityframe/internal/orm/query"
)

// ModelKey is the model cache key of the Northwind model
const ModelKey = "northwind"

// ErrQueryTimeout is returned when one query outlives its timeout
var ErrQueryTimeout = errors.New("query timed out")

// Options configures a Runner
type Options struct {
	Iterations  int
	Concurrency int
	Timeout     time.Duration
	Dialect     codegen.Dialect
}

// Stats summarizes a run
type Stats struct {
	Iterations int
	Rows       int
}

// Runner repeats the customers-with-orders query
type Runner struct {
	db     query.Querier
	source *modelcache.Source
	opts   Options
	logger *zap.Logger
}

// NewRunner creates a runner. A nil source gets a private cache.
func NewRunner(db query.Querier, source *modelcache.Source, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = modelcache.NewSource(logger)
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Dialect == nil {
		opts.Dialect = codegen.Postgres{}
	}
	return &Runner{db: db, source: source, opts: opts, logger: logger}
}

// CustomersWithOrders selects every customer that has placed an order
func CustomersWithOrders(m *metadata.Model, dialect codegen.Dialect) *query.Query {
	orders := query.NewQuery(m, "Order", dialect)
	return query.NewQuery(m, "Customer", dialect).
		WhereInSubquery("CustomerID", orders, "CustomerID")
}

// Run executes the configured iterations and stops at the first failure
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	r.logger.Info("setup",
		zap.Int("iterations", r.opts.Iterations),
		zap.Int("concurrency", r.opts.Concurrency),
		zap.String("dialect", r.opts.Dialect.Name()))

	m, err := r.source.GetModel(ModelKey, func() (*metadata.Model, error) {
		return BuildNorthwind()
	})
	if err != nil {
		return Stats{}, err
	}

	var done, rows atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i := 0; i < r.opts.Iterations; i++ {
		index := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := r.iteration(gctx, m, index)
			if err != nil {
				return fmt.Errorf("iteration %d: %w", index, err)
			}
			done.Add(1)
			rows.Add(int64(n))
			return nil
		})
	}

	err = g.Wait()
	stats := Stats{Iterations: int(done.Load()), Rows: int(rows.Load())}
	if err != nil {
		r.logger.Error("run failed", zap.Error(err), zap.Int("completed", stats.Iterations))
		return stats, err
	}

	r.logger.Info("done", zap.Int("iterations", stats.Iterations), zap.Int("rows", stats.Rows))
	return stats, nil
}

type result struct {
	customers []*Customer
	err       error
}

func (r *Runner) iteration(ctx context.Context, m *metadata.Model, index int) (int, error) {
	log := r.logger.With(zap.Int("iteration", index))
	log.Debug("constructing")

	qctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	q := CustomersWithOrders(m, r.opts.Dialect)

	log.Debug("await starting")
	ch := make(chan result, 1)
	go func() {
		var customers []*Customer
		err := q.All(qctx, r.db, &customers)
		ch <- result{customers: customers, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-qctx.Done():
		res.err = qctx.Err()
	}
	if res.err != nil {
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrQueryTimeout, r.opts.Timeout)
		}
		return 0, res.err
	}

	log.Debug("await done", zap.Int("rows", len(res.customers)))
	return len(res.customers), nil
}
