// Package syncer collects output files written by analysis jobs and copies
// them to the remote web area.
//
// A Collector owns the queue of written files. Output calls are routed
// through a Recorder, which records every path it writes. Flush turns the
// queue into a SyncRequest and hands it to a SyncDispatcher: the Executor
// for an in-process sync, or a publisher for a sync worker.
package syncer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// ErrNotStarted is returned by Append before Start or after Close.
var ErrNotStarted = errors.New("collector not started")

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	// Target is the remote web area receiving the files.
	Target entity.RemoteTarget

	// ListDir receives the <uuid>.txt file listing a request's files.
	ListDir string

	// MakeGifs attaches the queued gif jobs to flushed requests.
	MakeGifs bool

	Logger *slog.Logger
}

// CollectorConfigDefaults returns the defaults applied to zero-valued fields.
func CollectorConfigDefaults() CollectorConfig {
	return CollectorConfig{
		ListDir: os.TempDir(),
		Logger:  slog.Default(),
	}
}

// Collector queues output paths and flushes them as sync requests.
type Collector struct {
	config     CollectorConfig
	queue      outbound.SyncQueue
	dispatcher outbound.SyncDispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	gifs    []entity.GifJob
}

// NewCollector creates a collector. It accepts paths only after Start.
func NewCollector(config CollectorConfig, queue outbound.SyncQueue, dispatcher outbound.SyncDispatcher) (*Collector, error) {
	if queue == nil {
		return nil, fmt.Errorf("sync queue is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("sync dispatcher is required")
	}
	if err := config.Target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote target: %w", err)
	}

	defaults := CollectorConfigDefaults()
	if config.ListDir == "" {
		config.ListDir = defaults.ListDir
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Collector{
		config:     config,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     config.Logger.With("component", "sync-collector"),
	}, nil
}

// Start makes the collector accept paths.
func (c *Collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

// Append queues paths for the next flush.
func (c *Collector) Append(ctx context.Context, paths ...string) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	for _, p := range paths {
		c.logger.Debug("appending file", "path", p)
	}
	if err := c.queue.Add(ctx, paths...); err != nil {
		return fmt.Errorf("failed to queue files: %w", err)
	}
	return nil
}

// Pending returns the queued paths.
func (c *Collector) Pending(ctx context.Context) ([]string, error) {
	return c.queue.List(ctx)
}

// MakeRemoteGif queues a gif built remotely from the images matching
// pattern in dir. Directories outside a www/ area are ignored. It reports
// whether a new job was queued.
func (c *Collector) MakeRemoteGif(dir, pattern, name string, delay int) bool {
	if !strings.Contains(dir, "/www/") {
		c.logger.Warn("makeRemoteGif: /www/ not found, doing nothing", "directory", dir)
		return false
	}
	if delay <= 0 {
		delay = entity.DefaultGifDelay
	}
	job := entity.GifJob{Directory: dir, Pattern: pattern, Name: name, Delay: delay}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.gifs {
		if g == job {
			return false
		}
	}
	c.gifs = append(c.gifs, job)
	return true
}

// GifJobs returns the queued gif jobs.
func (c *Collector) GifJobs() []entity.GifJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.GifJob, len(c.gifs))
	copy(out, c.gifs)
	return out
}

// Flush dispatches the queued files as one request and removes them from the
// queue. It returns nil without dispatching when there is nothing to sync.
func (c *Collector) Flush(ctx context.Context) (*entity.SyncRequest, error) {
	queued, err := c.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued files: %w", err)
	}
	if len(queued) == 0 {
		c.logger.Info("no files for syncing")
		return nil, nil
	}

	paths := withIndexPages(queued, c.logger)

	var files []string
	for _, p := range paths {
		rp, err := entity.RsyncPath(p)
		if err != nil {
			c.logger.Warn("will not sync", "path", p)
			continue
		}
		files = append(files, rp)
	}
	if len(files) == 0 {
		c.logger.Info("no syncable files", "queued", len(queued))
		return nil, c.queue.Remove(ctx, queued...)
	}

	id := uuid.New()
	listFile := filepath.Join(c.config.ListDir, id.String()+".txt")
	if err := writeList(listFile, files); err != nil {
		return nil, err
	}
	c.logger.Info("written files for rsync", "files", len(files), "listFile", listFile)

	req := entity.SyncRequest{
		ID:        id.String(),
		Files:     files,
		ListFile:  listFile,
		Target:    c.config.Target,
		CreatedAt: time.Now().UTC(),
	}
	if c.config.MakeGifs {
		req.Gifs = c.GifJobs()
	}

	if err := c.dispatcher.Dispatch(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to dispatch sync request %s: %w", req.ID, err)
	}

	// Paths recorded while the request was dispatched stay queued.
	if err := c.queue.Remove(ctx, queued...); err != nil {
		return &req, fmt.Errorf("failed to remove synced paths from queue: %w", err)
	}
	if len(req.Gifs) > 0 {
		c.mu.Lock()
		if len(c.gifs) >= len(req.Gifs) {
			c.gifs = c.gifs[len(req.Gifs):]
		}
		c.mu.Unlock()
	}
	return &req, nil
}

// FlushGifs dispatches the queued gif jobs as a request without files, for
// images that were synced earlier. It returns nil when no job is queued.
func (c *Collector) FlushGifs(ctx context.Context) (*entity.SyncRequest, error) {
	jobs := c.GifJobs()
	if len(jobs) == 0 {
		c.logger.Info("no gifs to make")
		return nil, nil
	}

	req := entity.SyncRequest{
		ID:        uuid.New().String(),
		Gifs:      jobs,
		Target:    c.config.Target,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.dispatcher.Dispatch(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to dispatch gif request %s: %w", req.ID, err)
	}

	c.mu.Lock()
	if len(c.gifs) >= len(jobs) {
		c.gifs = c.gifs[len(jobs):]
	}
	c.mu.Unlock()
	return &req, nil
}

// Clear drops the queued files and gif jobs.
func (c *Collector) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.gifs = nil
	c.mu.Unlock()
	return c.queue.Clear(ctx)
}

// Close flushes the queue and stops accepting paths.
func (c *Collector) Close(ctx context.Context) error {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	_, err := c.Flush(ctx)
	return err
}

// withIndexPages adds the .php files found next to the queued files.
func withIndexPages(paths []string, logger *slog.Logger) []string {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		seen[p] = struct{}{}
	}

	dirs := make(map[string]struct{})
	out := append([]string(nil), paths...)
	for _, p := range paths {
		dir := filepath.Dir(realPath(p))
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}

		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Debug("cannot list directory for index pages", "dir", dir, "error", err)
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".php") {
				continue
			}
			php := filepath.Join(dir, e.Name())
			if _, ok := seen[php]; ok {
				continue
			}
			seen[php] = struct{}{}
			out = append(out, php)
		}
	}
	return out
}

func realPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func writeList(path string, files []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create list file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, file := range files {
		fmt.Fprintln(w, file)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write list file: %w", err)
	}
	return f.Close()
}
