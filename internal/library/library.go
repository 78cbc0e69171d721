package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var ErrEmpty = errors.New("library is empty")

const reloadDebounce = 200 * time.Millisecond

// Library hands out records of one SDF file. The offset table is swapped
// atomically on Reload so readers never see a partial index.
type Library struct {
	sdfPath   string
	indexPath string

	mu      sync.RWMutex
	offsets []int64
}

// DefaultIndexPath derives "<name>.index" from "<name>.sdf".
func DefaultIndexPath(sdfPath string) string {
	return strings.TrimSuffix(sdfPath, filepath.Ext(sdfPath)) + ".index"
}

// Open loads the offset index for sdfPath. An empty indexPath selects
// DefaultIndexPath. When the index file does not exist the SDF is scanned
// instead.
func Open(sdfPath, indexPath string) (*Library, error) {
	if indexPath == "" {
		indexPath = DefaultIndexPath(sdfPath)
	}
	lib := &Library{sdfPath: sdfPath, indexPath: indexPath}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Reload rereads the index, or rescans the SDF when no index file exists.
func (l *Library) Reload() error {
	offsets, err := LoadIndex(l.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		offsets, err = l.scan()
	}
	if err != nil {
		return fmt.Errorf("load library %s: %w", l.sdfPath, err)
	}

	l.mu.Lock()
	l.offsets = offsets
	l.mu.Unlock()
	return nil
}

func (l *Library) scan() ([]int64, error) {
	f, err := os.Open(l.sdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return BuildIndex(f)
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.offsets)
}

// Record returns the i-th record, counting from zero.
func (l *Library) Record(i int) (string, error) {
	l.mu.RLock()
	if i < 0 || i >= len(l.offsets) {
		n := len(l.offsets)
		l.mu.RUnlock()
		if n == 0 {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("record %d of %d: out of range", i, n)
	}
	off := l.offsets[i]
	l.mu.RUnlock()
	return ReadRecord(l.sdfPath, off)
}

// Random returns a uniformly chosen record.
func (l *Library) Random() (string, error) {
	n := l.Len()
	if n == 0 {
		return "", ErrEmpty
	}
	return l.Record(rand.IntN(n))
}

// Watch reloads the library whenever the SDF or its index changes on disk
// and returns when ctx is cancelled.
func (l *Library) Watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(l.sdfPath)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("library watcher: started", slog.String("path", l.sdfPath))

	var (
		timer    *time.Timer
		reloadCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			reloadCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	sdfAbs, _ := filepath.Abs(l.sdfPath)
	idxAbs, _ := filepath.Abs(l.indexPath)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("library watcher: stopped")
			return nil

		case <-reloadCh:
			if err := l.Reload(); err != nil {
				logger.Warn("library watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("library watcher: reloaded", slog.Int("records", l.Len()))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name, _ := filepath.Abs(ev.Name)
			if name != sdfAbs && name != idxAbs {
				continue
			}
			logger.Debug("library watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("library watcher: error", slog.String("error", err.Error()))
		}
	}
}
