package itemsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spotlightapp/spotlight-server/internal/watcher"
)

// ParseAllowList reads newline-delimited item ids. Whitespace is trimmed,
// blank lines and "#" comments (whole-line or trailing) are dropped, and
// duplicates keep their first position.
func ParseAllowList(data []byte) []string {
	var ids []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// AllowList holds the ids of an allow-list file and keeps them current.
type AllowList struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	ids []string

	watcher *watcher.Watcher
	cancel  context.CancelFunc
}

// LoadAllowList reads path. A missing file yields an empty list; an empty
// path yields a list that never changes.
func LoadAllowList(path string, logger *slog.Logger) (*AllowList, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &AllowList{path: path, logger: logger}
	if path == "" {
		return l, nil
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// StaticAllowList returns a list that is never reloaded.
func StaticAllowList(ids ...string) *AllowList {
	return &AllowList{ids: ParseAllowList([]byte(strings.Join(ids, "\n"))), logger: slog.New(slog.DiscardHandler)}
}

// IDs returns a copy of the current ids.
func (l *AllowList) IDs() []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.ids...)
}

func (l *AllowList) reload() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return err
	}
	ids := ParseAllowList(data)

	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
	l.logger.Info("allow-list loaded", "path", l.path, "count", len(ids))
	return nil
}

// Watch reloads the list whenever the file changes, until Close.
func (l *AllowList) Watch(opts watcher.Options) error {
	if l.path == "" {
		return nil
	}
	w, err := watcher.New(l.logger, opts)
	if err != nil {
		return err
	}
	if err := w.Watch(l.path); err != nil {
		_ = w.Stop()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.watcher, l.cancel = w, cancel
	go w.Start(ctx) //nolint:errcheck // returns only on shutdown
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.Events():
				l.logger.Debug("allow-list file event", "path", ev.Path, "type", ev.Type.String())
				if err := l.reload(); err != nil {
					l.logger.Warn("allow-list reload failed", "path", l.path, "error", err)
				}
			case err := <-w.Errors():
				l.logger.Warn("allow-list watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops watching.
func (l *AllowList) Close() error {
	if l == nil || l.watcher == nil {
		return nil
	}
	l.cancel()
	return l.watcher.Stop()
}
