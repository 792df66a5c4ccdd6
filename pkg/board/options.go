package board

import (
	"github.com/matt-steen/chore-board/pkg/assign"
	"github.com/rs/zerolog"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output and optimistic failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets a metrics collector. Defaults to NopMetrics.
func WithMetrics(metrics Metrics) Option {
	return func(s *Store) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithBalancer sets the random assignment engine, mainly so tests can seed it.
func WithBalancer(balancer *assign.Balancer) Option {
	return func(s *Store) {
		if balancer != nil {
			s.balancer = balancer
		}
	}
}
