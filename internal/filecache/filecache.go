// Package filecache is a size-bounded local copy cache for files staged
// from a slow networked mount (spec.md §4.5). It owns its cache directory
// and a small on-disk index of the source→staged mapping exclusively; no
// other package reads or writes under the cache directory.
package filecache

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	StagedName string    `json:"staged_name"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

// Cache maps source path to a staged local copy, bounded by budgetBytes and
// evicted in ascending last-access order (spec.md §4.5).
type Cache struct {
	dir         string
	indexPath   string
	budgetBytes int64

	mu       sync.Mutex
	entries  map[string]*entry
	occupied int64

	staging singleflight.Group
	log     *zap.Logger
}

// Open loads dir's persisted index (if any) and returns a ready Cache.
func Open(dir string, budgetMB int64, log *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeFatal, "creating cache directory")
	}
	c := &Cache{
		dir:         dir,
		indexPath:   filepath.Join(dir, "index.json"),
		budgetBytes: budgetMB << 20,
		entries:     make(map[string]*entry),
		log:         log,
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	c.refreshGauges()
	return c, nil
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(c.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "reading cache index")
	}
	var raw map[string]*entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.TypeFatal, "parsing cache index")
	}
	c.entries = raw
	for _, e := range raw {
		c.occupied += e.Size
	}
	return nil
}

// persistIndex must be called with c.mu held.
func (c *Cache) persistIndex() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		c.log.Error("marshaling cache index failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.indexPath, data, 0o644); err != nil {
		c.log.Error("persisting cache index failed", zap.Error(err))
	}
}

func (c *Cache) refreshGauges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.FileCacheOccupiedBytes.Set(float64(c.occupied))
	metrics.FileCacheEntries.Set(float64(len(c.entries)))
}

// Get returns the staged local path for source if present (bumping its
// last-access time), otherwise schedules an async staging and returns
// source unchanged, never blocking the caller (spec.md §4.5 get).
func (c *Cache) Get(source string) string {
	c.mu.Lock()
	e, ok := c.entries[source]
	if ok {
		e.LastAccess = time.Now()
		staged := filepath.Join(c.dir, e.StagedName)
		c.persistIndex()
		c.mu.Unlock()
		return staged
	}
	c.mu.Unlock()

	go c.Add(context.Background(), source)
	return source
}

// Add copies source into the cache under a new UUID-named file, then
// records the mapping, persists the index, and evicts if the budget is now
// exceeded. Add runs synchronously; Get calls it on its own goroutine. Staging for the same source is deduplicated via
// singleflight, matching the original's single-flight eviction discipline
// extended here to cover the staging copy itself.
func (c *Cache) Add(ctx context.Context, source string) {
	_, _, _ = c.staging.Do(source, func() (any, error) {
		c.mu.Lock()
		if _, exists := c.entries[source]; exists {
			c.mu.Unlock()
			return nil, nil
		}
		c.mu.Unlock()

		stagedName := uuid.New().String()
		stagedPath := filepath.Join(c.dir, stagedName)
		size, err := copyFile(source, stagedPath)
		if err != nil {
			c.log.Error("staging file failed", zap.String("source", source), zap.Error(err))
			return nil, err
		}

		c.mu.Lock()
		c.entries[source] = &entry{StagedName: stagedName, Size: size, LastAccess: time.Now()}
		c.occupied += size
		c.persistIndex()
		needsEviction := c.occupied >= c.budgetBytes
		c.mu.Unlock()

		if needsEviction {
			c.evict()
		}
		c.refreshGauges()
		return nil, nil
	})
}

// Remove unlinks source's staged copy and updates occupancy, if present.
func (c *Cache) Remove(source string) error {
	c.mu.Lock()
	e, ok := c.entries[source]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.entries, source)
	c.occupied -= e.Size
	c.persistIndex()
	c.mu.Unlock()

	c.refreshGauges()
	if err := os.Remove(filepath.Join(c.dir, e.StagedName)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(err, apperrors.TypeTransient, "removing staged file")
	}
	return nil
}

// evict removes entries in ascending last-access order until occupancy is
// below budget (spec.md §4.5 eviction).
func (c *Cache) evict() {
	c.mu.Lock()
	type keyed struct {
		source string
		e      *entry
	}
	var ordered []keyed
	for src, e := range c.entries {
		ordered = append(ordered, keyed{src, e})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].e.LastAccess.Before(ordered[j].e.LastAccess) })

	var toRemove []keyed
	occupied := c.occupied
	for _, k := range ordered {
		if occupied < c.budgetBytes {
			break
		}
		toRemove = append(toRemove, k)
		occupied -= k.e.Size
	}
	for _, k := range toRemove {
		delete(c.entries, k.source)
		c.occupied -= k.e.Size
	}
	c.persistIndex()
	c.mu.Unlock()

	for _, k := range toRemove {
		if err := os.Remove(filepath.Join(c.dir, k.e.StagedName)); err != nil && !os.IsNotExist(err) {
			c.log.Error("evicting staged file failed", zap.String("source", k.source), zap.Error(err))
		}
	}
	c.refreshGauges()
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}
