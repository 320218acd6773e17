// Package sysstats periodically samples the craftd process's own resource
// usage and reports it through logging and Prometheus gauges. It never
// touches game state; it exists purely for operators watching a
// long-running process.
package sysstats

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/adred-codev/craftd/internal/metrics"
)

// Reporter samples CPU and memory on an interval until its context is
// cancelled.
type Reporter struct {
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Registry
	proc     *process.Process
}

// NewReporter builds a Reporter for the current process.
func NewReporter(interval time.Duration, logger zerolog.Logger, reg *metrics.Registry) (*Reporter, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Reporter{interval: interval, logger: logger, metrics: reg, proc: proc}, nil
}

// Run samples on the configured interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *Reporter) sample() {
	cpuPct, err := r.proc.CPUPercent()
	if err != nil {
		r.logger.Debug().Err(err).Msg("sysstats: cpu sample failed")
		return
	}
	memInfo, err := r.proc.MemoryInfo()
	if err != nil {
		r.logger.Debug().Err(err).Msg("sysstats: memory sample failed")
		return
	}

	if r.metrics != nil {
		r.metrics.CPUPercent.Set(cpuPct)
		r.metrics.RSSBytes.Set(float64(memInfo.RSS))
	}

	r.logger.Debug().
		Float64("cpu_percent", cpuPct).
		Uint64("rss_bytes", memInfo.RSS).
		Msg("sysstats sample")
}
