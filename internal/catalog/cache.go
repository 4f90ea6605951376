package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	cachePrefix      = "catalog_"
	cacheSuffix      = ".tle"
	cacheStampLayout = "20060102T150405Z"
	defaultMaxFiles  = 5
)

// Cache keeps raw element-set downloads on disk so restarts can run
// offline. Files are stamped with their fetch time and pruned oldest-first.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache returns a cache rooted at dir, creating it if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Cache{dir: dir, maxFiles: defaultMaxFiles}, nil
}

// Write stores one download stamped with its fetch time and prunes old
// files beyond the retention limit.
func (c *Cache) Write(data []byte, fetchedAt time.Time) error {
	name := cachePrefix + fetchedAt.UTC().Format(cacheStampLayout) + cacheSuffix
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return c.prune()
}

// LoadLatest returns the newest cached download and its fetch time.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("catalog cache is empty")
	}
	newest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, newest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, newest.stamp, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	for len(files) > c.maxFiles {
		if err := os.Remove(filepath.Join(c.dir, files[0].name)); err != nil {
			return fmt.Errorf("pruning cache file: %w", err)
		}
		files = files[1:]
	}
	return nil
}

type cacheFile struct {
	name  string
	stamp time.Time
}

// listFiles returns valid cache files sorted oldest first. Entries whose
// names do not parse are ignored.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, cacheSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), cacheSuffix)
		stamp, err := time.Parse(cacheStampLayout, raw)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, stamp: stamp})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].stamp.Before(files[j].stamp) })
	return files, nil
}
