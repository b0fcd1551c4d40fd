package stats

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const megabyte = 1 << 20

// EnableMemoryStatistics starts a goroutine that logs the runtime stats of the
// daemon at every interval. When ctx is done, the gathered metrics are
// appended to the stats file in dumpDir.
func EnableMemoryStatistics(
	ctx context.Context, interval time.Duration, dumpDir string,
) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				LogRuntimeStatistics()
			case <-ctx.Done():
				if err := DumpPrometheusDefaults(dumpDir); err != nil {
					log.WithError(err).Warn("failed to dump metrics")
				}
				return
			}
		}
	}()
}

// LogRuntimeStatistics logs heap usage, allocation counters and the number of
// running goroutines.
func LogRuntimeStatistics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	log.WithFields(log.Fields{
		"total_alloc_mb": toMegabytes(mem.TotalAlloc),
		"heap_alloc_mb":  toMegabytes(mem.HeapAlloc),
		"mallocs":        mem.Mallocs,
		"frees":          mem.Frees,
		"goroutines":     runtime.NumGoroutine(),
	}).Info("runtime stats")
}

// DumpPrometheusDefaults appends every metric family of the default registry
// to the stats file in dir.
func DumpPrometheusDefaults(dir string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}

	file, err := os.OpenFile(
		filepath.Join(dir, "stats"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(
		"# " + time.Now().UTC().Format(time.RFC3339) + "\n",
	); err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := w.WriteString(mf.String() + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / megabyte
}
