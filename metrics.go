package proxima

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert is called after each batch insert operation.
	// count is the number of items in the batch.
	RecordBatchInsert(count int, duration time.Duration, err error)

	// RecordSearch is called after each search operation, exact or indexed.
	// k is the number of neighbors requested.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, found bool)

	// RecordBuild is called after each index build. nodes is the number of
	// vectors indexed.
	RecordBuild(nodes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)           {}
func (NoopMetricsCollector) RecordBatchInsert(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordDelete(time.Duration, bool)            {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BatchInsertCount atomic.Int64
	BatchInsertItems atomic.Int64
	BatchErrors      atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteMisses     atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())

	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count int, duration time.Duration, err error) {
	b.BatchInsertCount.Add(1)
	b.BatchInsertItems.Add(int64(count))

	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())

	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, found bool) {
	b.DeleteCount.Add(1)

	if !found {
		b.DeleteMisses.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(nodes int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())

	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:      b.InsertCount.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		InsertAvgNanos:   avgNanos(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BatchInsertCount: b.BatchInsertCount.Load(),
		BatchInsertItems: b.BatchInsertItems.Load(),
		BatchErrors:      b.BatchErrors.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avgNanos(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteMisses:     b.DeleteMisses.Load(),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildAvgNanos:    avgNanos(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}

	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertErrors     int64
	InsertAvgNanos   int64
	BatchInsertCount int64
	BatchInsertItems int64
	BatchErrors      int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	DeleteCount      int64
	DeleteMisses     int64
	BuildCount       int64
	BuildErrors      int64
	BuildAvgNanos    int64
}
