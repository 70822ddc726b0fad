// Package spool sends XML request files dropped into a directory.
//
// Every *.xml file is sent once through a single Sender. The gateway reply
// is written next to it as <name>.resp; a failure is written as <name>.err
// holding the error message. Files that already have a result are skipped
// on restart; a send interrupted by shutdown records nothing and is retried.
package spool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/bft-labs/posnet/pkg/log"
)

const (
	requestExt  = ".xml"
	responseExt = ".resp"
	errorExt    = ".err"
)

// Sender submits one XML payload. *posnet.Connector satisfies it.
type Sender interface {
	Send(ctx context.Context, xmlPayload string) (string, error)
}

// Config holds configuration for a Watcher.
type Config struct {
	// Dir is the watched directory.
	Dir string

	// DebounceDelay is how long a file must stay quiet before it is sent.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// RatePerSecond and Burst bound how fast files are sent.
	// Default: 5 per second, burst 1
	RatePerSecond float64
	Burst         int

	// SendTimeout bounds a single send. Zero means no extra bound.
	SendTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
		RatePerSecond: 5,
		Burst:         1,
	}
}

// Watcher feeds spool files to a Sender, one at a time.
type Watcher struct {
	cfg     Config
	sender  Sender
	logger  log.Logger
	limiter *rate.Limiter

	pending map[string]time.Time
}

// New creates a Watcher. A nil logger discards output.
func New(cfg Config, sender Sender, logger log.Logger) *Watcher {
	def := DefaultConfig()
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		pending: make(map[string]time.Time),
	}
}

// Run processes existing files, then watches for new ones until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("spool watcher started", log.String("dir", w.cfg.Dir))

	if err := w.drain(ctx); err != nil {
		return err
	}

	tick := w.cfg.DebounceDelay / 2
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool watcher stopped", log.String("dir", w.cfg.Dir))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRequest(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pending[event.Name] = time.Now().Add(w.cfg.DebounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("spool watcher error", log.Err(err))

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				if err := w.process(ctx, path); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					w.logger.Error("spool file failed", log.String("file", path), log.Err(err))
				}
			}
		}
	}
}

// drain sends every request file already present in the directory.
func (w *Watcher) drain(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(w.cfg.Dir, "*"+requestExt))
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.cfg.Dir, err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		if !isRequest(path) {
			continue
		}
		if err := w.process(ctx, path); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("spool file failed", log.String("file", path), log.Err(err))
		}
	}
	return nil
}

// due pops the pending files whose debounce delay has elapsed, oldest name first.
func (w *Watcher) due(now time.Time) []string {
	var ready []string
	for path, at := range w.pending {
		if !now.Before(at) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

// process sends one file and records the outcome. The returned error covers
// local I/O and shutdown; gateway failures end up in the .err file. A send
// cut short by ctx leaves no result, so the file is sent again on the next run.
func (w *Watcher) process(ctx context.Context, path string) error {
	if hasResult(path) {
		return nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read request: %w", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	sendCtx := ctx
	if w.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.cfg.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, sendErr := w.sender.Send(sendCtx, string(payload))
	if sendErr != nil && ctx.Err() != nil {
		w.logger.Warn("spool send interrupted",
			log.String("file", filepath.Base(path)),
			log.Err(sendErr),
		)
		return ctx.Err()
	}
	if sendErr != nil {
		w.logger.Warn("spool send failed",
			log.String("file", filepath.Base(path)),
			log.Duration("took", time.Since(start)),
			log.Err(sendErr),
		)
		return writeAtomic(resultPath(path, errorExt), []byte(sendErr.Error()))
	}

	w.logger.Info("spool send complete",
		log.String("file", filepath.Base(path)),
		log.Int("bytes", len(resp)),
		log.Duration("took", time.Since(start)),
	)
	return writeAtomic(resultPath(path, responseExt), []byte(resp))
}

func isRequest(path string) bool {
	return strings.HasSuffix(path, requestExt) && !strings.HasPrefix(filepath.Base(path), ".")
}

func resultPath(path, ext string) string {
	return strings.TrimSuffix(path, requestExt) + ext
}

func hasResult(path string) bool {
	for _, ext := range []string{responseExt, errorExt} {
		if _, err := os.Stat(resultPath(path, ext)); err == nil {
			return true
		}
	}
	return false
}

// writeAtomic writes to a temp file then renames so readers never see a partial result.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return os.Rename(tmp, path)
}
