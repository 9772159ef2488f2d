package snapshot

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/observability/metrics"
)

const (
	fileExt          = ".snap"
	defaultMemoryTTL = 10 * time.Minute
)

// Cache stores images on disk under <dir>/<fingerprint>.snap with an
// in-memory front. Stale images are never returned: a lookup is by the
// fingerprint the backend has now.
type Cache struct {
	dir     string
	memory  *cache.Cache
	metrics *metrics.SnapshotMetrics
	log     logger.Logger
}

// NewCache creates a cache from settings. m may be nil.
func NewCache(settings conf.SnapshotSettings, m *metrics.SnapshotMetrics, log logger.Logger) (*Cache, error) {
	if settings.Path == "" {
		return nil, errors.Newf("snapshot cache requires a directory").
			Component("snapshot").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(settings.Path, 0o755); err != nil {
		return nil, fileError(err, "create", settings.Path)
	}
	ttl := settings.MemoryTTL
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	if log == nil {
		log = logger.Global().Module("snapshot")
	}
	return &Cache{
		dir:     settings.Path,
		memory:  cache.New(ttl, ttl*2),
		metrics: m,
		log:     log,
	}, nil
}

func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("snapshot").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+fileExt)
}

// Save writes img to disk and memory. The file is written under a temporary
// name and renamed so readers never see a partial image.
func (c *Cache) Save(img *Image) error {
	if img.Fingerprint == "" || strings.ContainsAny(img.Fingerprint, `/\.`) {
		return errors.Newf("snapshot fingerprint %q is not a valid name", img.Fingerprint).
			Component("snapshot").
			Category(errors.CategoryValidation).
			Build()
	}
	start := time.Now()

	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		return errors.New(err).
			Component("snapshot").
			Category(errors.CategorySerialization).
			Context("fingerprint", img.Fingerprint).
			Build()
	}

	tmp, err := os.CreateTemp(c.dir, img.Fingerprint+".*.tmp")
	if err != nil {
		return fileError(err, "save", c.dir)
	}
	size := int64(buf.Len())
	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fileError(err, "save", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fileError(err, "save", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), c.path(img.Fingerprint)); err != nil {
		os.Remove(tmp.Name())
		return fileError(err, "save", c.path(img.Fingerprint))
	}

	c.memory.Set(img.Fingerprint, img, cache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.RecordSave(time.Since(start).Seconds(), size)
		c.metrics.SetMemoryEntries(c.memory.ItemCount())
	}
	c.log.Info("snapshot saved",
		logger.String("fingerprint", img.Fingerprint),
		logger.Int("rows", img.RowCount()),
		logger.Int64("bytes", size))
	return nil
}

// Load returns the image saved under fingerprint. A miss is a not-found
// error.
func (c *Cache) Load(fingerprint string) (*Image, error) {
	if v, ok := c.memory.Get(fingerprint); ok {
		c.record(metrics.TierMemory, true)
		return v.(*Image), nil
	}
	c.record(metrics.TierMemory, false)

	path := c.path(fingerprint)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.record(metrics.TierDisk, false)
		return nil, errors.Newf("no snapshot for fingerprint %s", fingerprint).
			Component("snapshot").
			Category(errors.CategoryNotFound).
			Context("fingerprint", fingerprint).
			Build()
	}
	if err != nil {
		return nil, fileError(err, "load", path)
	}
	defer f.Close()

	img, err := Decode(f)
	if err == nil && img.Fingerprint != fingerprint {
		err = errors.Newf("snapshot %s holds fingerprint %s", path, img.Fingerprint).Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("snapshot").
			Category(errors.CategorySerialization).
			Context("path", path).
			Build()
	}
	c.record(metrics.TierDisk, true)

	c.memory.Set(fingerprint, img, cache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.SetMemoryEntries(c.memory.ItemCount())
	}
	return img, nil
}

func (c *Cache) record(tier string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordLookup(tier, hit)
	}
}

// Fingerprints lists the images on disk
func (c *Cache) Fingerprints() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fileError(err, "list", c.dir)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileExt) {
			out = append(out, strings.TrimSuffix(e.Name(), fileExt))
		}
	}
	return out, nil
}

// Prune removes every image except keep and returns how many were removed
func (c *Cache) Prune(keep string) (int, error) {
	fingerprints, err := c.Fingerprints()
	if err != nil {
		return 0, err
	}
	var removed int
	for _, fp := range fingerprints {
		if fp == keep {
			continue
		}
		if err := os.Remove(c.path(fp)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fileError(err, "prune", c.path(fp))
		}
		c.memory.Delete(fp)
		removed++
	}
	if c.metrics != nil {
		c.metrics.SetMemoryEntries(c.memory.ItemCount())
	}
	if removed > 0 {
		c.log.Info("stale snapshots removed", logger.Int("count", removed))
	}
	return removed, nil
}

// Flush empties the in-memory front
func (c *Cache) Flush() {
	c.memory.Flush()
	if c.metrics != nil {
		c.metrics.SetMemoryEntries(0)
	}
}
