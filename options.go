package proxima

import (
	"log/slog"

	"github.com/proximadb/proxima/codec"
)

type options struct {
	codec            codec.Codec
	compression      Compression
	metricsCollector MetricsCollector
	logger           *Logger
	randomSeed       *int64
}

// Option configures store construction.
type Option func(*options)

// WithCodec configures the codec used for encoding and decoding snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}

		o.codec = c
	}
}

// WithCompression configures the compression applied to snapshot payloads.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &proxima.BasicMetricsCollector{}
//	store, _ := proxima.New(128, distance.MetricCosine, proxima.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}

		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}

		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithRandomSeed makes index builds deterministic by seeding the level
// generator.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.randomSeed = &seed
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	return o
}
