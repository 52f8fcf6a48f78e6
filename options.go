package vecstream

import "log/slog"

// options configures Open.
type options struct {
	logger           *Logger
	rebuildThreshold float64
	hnsw             hnswParams
}

// hnswParams carries the HNSW construction parameters a new collection is
// created with (existing collections load their own persisted params and
// ignore these).
type hnswParams struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

// Option configures Open.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel is a convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logger = NewTextLogger(level) }
}

// WithRebuildThreshold overrides the deleted-fraction at which a collection
// MAY rebuild its HNSW index (default 0.25, per §4.2).
func WithRebuildThreshold(fraction float64) Option {
	return func(o *options) { o.rebuildThreshold = fraction }
}

// WithHNSWParams overrides the HNSW construction parameters used by
// newly-created collections.
func WithHNSWParams(m, efConstruction, efSearch int, seed int64) Option {
	return func(o *options) {
		o.hnsw = hnswParams{M: m, EfConstruction: efConstruction, EfSearch: efSearch, Seed: seed}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		rebuildThreshold: 0.25,
		hnsw: hnswParams{
			M:              16,
			EfConstruction: 200,
			EfSearch:       50,
			Seed:           1,
		},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
