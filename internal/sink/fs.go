// Package sink persists harvested artifacts to the local filesystem.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileSink writes artifacts under a single output directory. Image artifacts
// are written with Write (create or truncate); ticker artifacts use Append so
// repeated runs extend the existing CSV.
type FileSink struct {
	root   string
	logger *zap.Logger
}

// New validates the output directory and returns a sink rooted at it. The
// directory is created when missing and must be writable before any worker
// starts.
func New(root string, logger *zap.Logger) (*FileSink, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("output path %s is not a directory", root)
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(root, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create output directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat output directory: %w", err)
	}

	probe := filepath.Join(root, ".writable_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &FileSink{root: root, logger: logger}, nil
}

// Root returns the sink's output directory.
func (s *FileSink) Root() string {
	return s.root
}

// Write creates or overwrites the named artifact.
func (s *FileSink) Write(name string, data []byte) (string, error) {
	target, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	s.logger.Debug("artifact written", zap.String("path", target), zap.Int("bytes", len(data)))
	return target, nil
}

// Append extends the named artifact, creating it when missing.
func (s *FileSink) Append(name string, data []byte) (string, error) {
	target, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is confined to the sink root
	if err != nil {
		return "", fmt.Errorf("open %s: %w", target, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("append %s: %w", target, err)
	}
	s.logger.Debug("artifact appended", zap.String("path", target), zap.Int("bytes", len(data)))
	return target, nil
}

// resolve joins name onto the root and rejects traversal outside it.
func (s *FileSink) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	full := filepath.Clean(filepath.Join(s.root, name))
	base := filepath.Clean(s.root)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact name %q escapes the output directory", name)
	}
	if full == base {
		return "", fmt.Errorf("artifact name %q resolves to the output directory", name)
	}
	return full, nil
}
