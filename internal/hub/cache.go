package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/moviescript/moviescript-web/internal/logging"
)

// ErrInvalidFilename is returned for names that are not a single path element.
var ErrInvalidFilename = errors.New("invalid artifact filename")

// Cache maps artifact filenames to local files under dir, fetching on miss.
// There is no invalidation: a present file is always served as-is.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
	group   singleflight.Group
}

func NewCache(dir string, fetcher Fetcher, logger *slog.Logger) *Cache {
	return &Cache{dir: dir, fetcher: fetcher, logger: logger}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Acquire returns the local path of filename, downloading it first if it
// is not cached. Concurrent calls for one filename share a download.
func (c *Cache) Acquire(ctx context.Context, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	dest := filepath.Join(c.dir, filename)

	if cached(dest) {
		c.logger.Debug("artifact cache hit", "file", filename)
		return dest, nil
	}

	v, err, shared := c.group.Do(filename, func() (any, error) {
		if cached(dest) {
			return dest, nil
		}
		return dest, c.download(ctx, filename, dest)
	})
	if err != nil {
		return "", fmt.Errorf("acquire %s: %w", filename, err)
	}
	if shared {
		c.logger.Debug("artifact download shared", "file", filename)
	}
	return v.(string), nil
}

func (c *Cache) download(ctx context.Context, filename, dest string) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "."+filename+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	start := time.Now()
	if err := c.fetcher.Fetch(ctx, filename, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move artifact into cache: %w", err)
	}

	var size string
	if info, err := os.Stat(dest); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	c.logger.Info("artifact downloaded",
		"file", filename,
		"path", logging.SanitizePath(dest),
		"size", size,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func cached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ValidateFilename accepts only a plain, single-element file name.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFilename)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidFilename, name)
		}
	}
	return nil
}
