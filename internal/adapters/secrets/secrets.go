// Package secrets resolves vendor credentials and signing keys.
//
// FileStore reads a flat YAML map of names to values, reloads it when the
// file changes and falls back to FLEETREADY_SECRET_<NAME> environment
// variables for names the file does not define.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// DefaultEnvPrefix prefixes environment fallbacks.
const DefaultEnvPrefix = "FLEETREADY_SECRET_"

// Store resolves secrets by name and notifies rotations.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// OnRotate registers fn to run with the name of every secret whose value changed.
	OnRotate(fn func(key string))
}

// FileStore is a Store backed by a YAML file and the environment.
type FileStore struct {
	path      string
	envPrefix string
	log       logger.Logger

	mu        sync.RWMutex
	values    map[string]string
	callbacks []func(string)

	watcher   *fsnotify.Watcher
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewFileStore loads path. An empty path serves the environment only.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		envPrefix: DefaultEnvPrefix,
		log:       logger.Nop(),
		values:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if path == "" {
		return s, nil
	}
	values, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.values = values
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok && v != "" {
		return v, nil
	}
	if v := os.Getenv(s.envName(key)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// OnRotate implements Store.
func (s *FileStore) OnRotate(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Watch reloads the file whenever it is written or replaced, until ctx is
// done or Close is called. The parent directory is watched so atomic
// renames by editors and secret mounts are seen.
func (s *FileStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve secrets path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create secrets watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch secrets dir: %w", err)
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(ctx); err != nil {
					s.log.Warn(ctx, "secrets reload failed", logger.String("path", abs), logger.Error(err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn(ctx, "secrets watcher error", logger.Error(err))
			}
		}
	}()
	return nil
}

// Reload re-reads the file and notifies every changed or removed key.
func (s *FileStore) Reload(ctx context.Context) error {
	next, err := readFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var changed []string
	for k, v := range next {
		if old, ok := s.values[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range s.values {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	s.values = next
	callbacks := append(([]func(string))(nil), s.callbacks...)
	s.mu.Unlock()

	sort.Strings(changed)
	for _, k := range changed {
		metrics.RecordSecretRotation()
		s.log.Info(ctx, "secret rotated", logger.String("key", k))
		for _, fn := range callbacks {
			fn(k)
		}
	}
	return nil
}

// Close stops watching. It is safe to call more than once.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.RLock()
		w := s.watcher
		s.mu.RUnlock()
		if w != nil {
			err = w.Close()
		}
	})
	return err
}

func (s *FileStore) envName(key string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return s.envPrefix + strings.ToUpper(r.Replace(key))
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

// Static is an in-memory Store.
type Static map[string]string

// Get implements Store.
func (s Static) Get(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// OnRotate implements Store; static secrets never rotate.
func (Static) OnRotate(func(string)) {}

// IsNotFound reports whether err is a missing secret.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
