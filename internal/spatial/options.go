package spatial

import "go.uber.org/zap"

// Option configures an index at construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for construction and lifecycle events.
// Per-entity operations never log.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
