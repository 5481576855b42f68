package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// File names inside the cache directory.
const (
	ArtifactName = "container.json"
	MarkerName   = "container.marker"
)

// Store persists compiled graphs. The artifact and its marker are written to
// a temp file and renamed into place, so a reader sees either the previous
// artifact or the new one. Concurrent writers race harmlessly; the last
// rename wins and every writer produces the same graph for the same input.
type Store struct {
	dir    string
	debug  bool
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. In debug mode the cache is never
// used.
func NewStore(dir string, debug bool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, debug: debug, logger: logger}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// ArtifactPath returns the path of the compiled graph.
func (s *Store) ArtifactPath() string { return filepath.Join(s.dir, ArtifactName) }

// MarkerPath returns the path of the marker sidecar.
func (s *Store) MarkerPath() string { return filepath.Join(s.dir, MarkerName) }

// ShouldUseCache reports whether the stored artifact was built for marker.
// It is always false in debug mode.
func (s *Store) ShouldUseCache(marker string) bool {
	if s.debug {
		s.logger.Debug("container cache bypassed in debug mode")
		return false
	}
	stored, err := os.ReadFile(s.MarkerPath())
	if err != nil {
		return false
	}
	if strings.TrimSpace(string(stored)) != marker {
		s.logger.Info("container cache is stale", zap.String("path", s.ArtifactPath()))
		return false
	}
	if _, err := os.Stat(s.ArtifactPath()); err != nil {
		return false
	}
	return true
}

// Dump writes the compiled graph, then its marker.
func (s *Store) Dump(g *di.Graph) error {
	snap, err := g.Snapshot()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode graph: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create %s: %w", s.dir, err)
	}
	if err := writeAtomic(s.ArtifactPath(), data); err != nil {
		return err
	}
	if err := writeAtomic(s.MarkerPath(), []byte(g.Marker()+"\n")); err != nil {
		return err
	}
	s.logger.Info("container cache written",
		zap.String("path", s.ArtifactPath()),
		zap.String("build_id", g.BuildID()),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load reads the artifact back into a frozen graph. Any failure, including a
// missing artifact, is reported as *di.CacheCorruptError.
func (s *Store) Load() (*di.Graph, error) {
	path := s.ArtifactPath()
	corrupt := func(err error) error { return &di.CacheCorruptError{Path: path, Err: err} }

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, corrupt(err)
	}
	var snap di.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, corrupt(err)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return nil, corrupt(errors.New("trailing data after graph"))
	}
	g, err := di.FromSnapshot(&snap)
	if err != nil {
		return nil, corrupt(err)
	}
	if stored, err := os.ReadFile(s.MarkerPath()); err == nil {
		if strings.TrimSpace(string(stored)) != g.Marker() {
			return nil, corrupt(errors.New("marker does not match artifact"))
		}
	}
	s.logger.Debug("container cache loaded", zap.String("path", path), zap.String("build_id", g.BuildID()))
	return g, nil
}

// Clear deletes the artifact and its marker.
func (s *Store) Clear() error {
	var errs []error
	for _, p := range []string{s.MarkerPath(), s.ArtifactPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	s.logger.Info("container cache cleared", zap.String("dir", s.dir))
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	name := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	return nil
}
