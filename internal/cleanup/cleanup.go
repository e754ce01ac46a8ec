package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/pool"
)

// Target is one directory swept by the reaper
type Target struct {
	Dir    string
	MaxAge time.Duration
	// PruneDirs removes subdirectories the sweep left empty
	PruneDirs bool
}

// Result reports one sweep of one target
type Result struct {
	Dir          string
	FilesDeleted int
	BytesFreed   int64
	Errors       int
}

// Reaper periodically removes files that outlived their target's max age:
// partial downloads left by crashed archive jobs and local archives whose
// links have expired
type Reaper struct {
	targets  []Target
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	workers  *pool.WorkerPool

	closeCh   chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
}

// NewReaper creates a reaper over targets
func NewReaper(interval time.Duration, logger *zap.Logger, targets ...Target) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := len(targets)
	if workers > 4 {
		workers = 4
	}
	return &Reaper{
		workers:   pool.NewWorkerPool(workers, len(targets)),
		targets:   targets,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		closeCh:   make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start sweeps once and then every interval until Stop or ctx ends
func (r *Reaper) Start(ctx context.Context) {
	if r.started.Swap(true) {
		return
	}
	go r.run(ctx)
}

// Stop ends the loop and waits for a running sweep
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.closeCh) })
	if r.started.Load() {
		<-r.stoppedCh
	}
	_ = r.workers.Shutdown(context.Background())
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sweep()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.closeCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans every target once, targets in parallel
func (r *Reaper) Sweep() []Result {
	results := make([]Result, len(r.targets))

	var wg sync.WaitGroup
	for i, t := range r.targets {
		i, t := i, t
		wg.Add(1)
		task := func(context.Context) {
			defer wg.Done()
			results[i] = r.sweep(t)
		}
		if err := r.workers.Submit(context.Background(), task); err != nil {
			// pool already shut down
			task(context.Background())
		}
	}
	wg.Wait()

	for _, res := range results {
		r.logger.Info("Cleanup completed",
			zap.String("dir", res.Dir),
			zap.Int("files_deleted", res.FilesDeleted),
			zap.String("freed", formatBytes(res.BytesFreed)),
			zap.Int("errors", res.Errors),
		)
	}
	return results
}

func (r *Reaper) sweep(t Target) Result {
	res := Result{Dir: t.Dir}
	if _, err := os.Stat(t.Dir); os.IsNotExist(err) {
		return res
	}

	cutoff := r.now().Add(-t.MaxAge)
	var dirs []string

	_ = filepath.WalkDir(t.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Errors++
			return nil
		}
		if d.IsDir() {
			if path != t.Dir {
				dirs = append(dirs, path)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			r.logger.Warn("Failed to delete old file", zap.String("file", path), zap.Error(err))
			res.Errors++
			return nil
		}
		res.FilesDeleted++
		res.BytesFreed += info.Size()
		return nil
	})

	if t.PruneDirs {
		// deepest first; non-empty directories simply fail to remove
		for i := len(dirs) - 1; i >= 0; i-- {
			_ = os.Remove(dirs[i])
		}
	}
	return res
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
