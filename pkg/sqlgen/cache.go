package sqlgen

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/logging"
)

const (
	cacheIndexFile = "sql_cache.json"
	cacheStatsFile = "cache_stats.json"
	cacheVersion   = "1.0"
)

// Store is a content-addressed, TTL-based, size-bounded persistent cache of
// generation results. A single mutex guards the in-memory index and its
// on-disk mirror; every I/O failure degrades to in-memory operation.
type Store struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	stats   storeStats
}

// cacheEntry is the persisted record for one generated SQL pair. The request
// fields are carried for display, not lookup.
type cacheEntry struct {
	CacheKey          string    `json:"cache_key"`
	LegacySQL         string    `json:"legacy_sql"`
	ProdSQL           string    `json:"prod_sql"`
	Explanation       string    `json:"explanation"`
	LegacyTable       string    `json:"legacy_table"`
	ProdTable         string    `json:"prod_table"`
	ValidationRequest string    `json:"validation_request"`
	DateColumn        string    `json:"date_column,omitempty"`
	StartDate         string    `json:"start_date,omitempty"`
	EndDate           string    `json:"end_date,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	AccessCount       int       `json:"access_count"`
}

type cacheIndex struct {
	Version     string        `json:"version"`
	LastUpdated time.Time     `json:"last_updated"`
	Entries     []*cacheEntry `json:"entries"`
}

type storeStats struct {
	Hits        int       `json:"hits"`
	Misses      int       `json:"misses"`
	Saves       int       `json:"saves"`
	Evictions   int       `json:"evictions"`
	LastCleanup time.Time `json:"last_cleanup"`
}

// Stats is a consistent snapshot of cache counters and size.
type Stats struct {
	Entries        int
	MaxEntries     int
	TTL            time.Duration
	Hits           int
	Misses         int
	HitRatePercent float64
	Saves          int
	Evictions      int
	LastCleanup    time.Time
	SizeBytes      int64
}

// EntrySummary describes one cache entry for operational listing.
type EntrySummary struct {
	Key               string
	ValidationRequest string
	Tables            string
	CreatedAt         time.Time
	LastAccessed      time.Time
	AccessCount       int
	AgeHours          float64
}

// NewStore opens or creates the cache directory, loads the persisted index and
// stats, and sweeps expired entries. An unreadable index degrades to an empty
// cache.
func NewStore(dir string, ttl time.Duration, maxEntries int, logger *zap.Logger) *Store {
	s := &Store{
		dir:        dir,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger.Named("cache"),
		entries:    make(map[string]*cacheEntry),
		stats:      storeStats{LastCleanup: time.Now()},
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("failed to create cache directory", zap.String("dir", dir), zap.Error(err))
		return s
	}

	s.loadStats()
	s.loadIndex()
	s.sweepExpiredLocked()

	s.logger.Info("sql cache initialized",
		zap.String("dir", dir),
		zap.Int("entries", len(s.entries)))
	return s
}

// Get returns the cached result for an equivalent request. An expired entry is
// removed and counted as both a miss and an eviction. Absence is the only
// negative signal.
func (s *Store) Get(req Request) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.CacheKey()
	entry, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		s.saveStatsLocked()
		return Result{}, false
	}

	if s.isExpired(entry) {
		s.logger.Debug("cache entry expired", zap.String("key", logging.TruncateString(key, 12)))
		delete(s.entries, key)
		s.stats.Misses++
		s.stats.Evictions++
		s.saveStatsLocked()
		return Result{}, false
	}

	entry.LastAccessed = time.Now()
	entry.AccessCount++
	s.stats.Hits++
	s.saveStatsLocked()

	s.logger.Info("cache hit",
		zap.String("key", logging.TruncateString(key, 12)),
		zap.String("request", logging.TruncateString(req.ValidationRequest, 50)))

	return Result{
		LegacySQL:   entry.LegacySQL,
		ProdSQL:     entry.ProdSQL,
		Explanation: entry.Explanation,
		Origin:      OriginCache,
	}, true
}

// Put inserts or overwrites the entry for the request's key, persists the full
// index atomically, and evicts the oldest 10% (minimum 1) by last access when
// the entry count exceeds the cap. Returns the cache key.
func (s *Store) Put(req Request, res Result) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.CacheKey()
	now := time.Now()
	s.entries[key] = &cacheEntry{
		CacheKey:          key,
		LegacySQL:         res.LegacySQL,
		ProdSQL:           res.ProdSQL,
		Explanation:       res.Explanation,
		LegacyTable:       req.LegacyTable,
		ProdTable:         req.ProdTable,
		ValidationRequest: req.ValidationRequest,
		DateColumn:        req.DateColumn,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		CreatedAt:         now,
		LastAccessed:      now,
		AccessCount:       1,
	}

	if len(s.entries) > s.maxEntries {
		s.evictOldestLocked()
	}

	s.saveIndexLocked()
	s.stats.Saves++
	s.saveStatsLocked()

	s.logger.Info("cache save",
		zap.String("key", logging.TruncateString(key, 12)),
		zap.String("request", logging.TruncateString(req.ValidationRequest, 50)))
	return key
}

// Clear removes all entries and both backing files, resets the counters, and
// returns the number of entries removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.entries)
	s.entries = make(map[string]*cacheEntry)

	for _, path := range []string{s.indexPath(), s.statsPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove cache file", zap.String("path", path), zap.Error(err))
		}
	}

	s.stats = storeStats{LastCleanup: time.Now()}
	s.logger.Info("cache cleared", zap.Int("entries", count))
	return count
}

// Invalidate removes the entry for req, if present, so the next generation
// attempt reaches the provider again. Callers use this after the query
// engine rejects a cached statement.
func (s *Store) Invalidate(req Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.CacheKey()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	s.stats.Evictions++
	s.saveIndexLocked()
	s.saveStatsLocked()
	s.logger.Info("cache entry invalidated", zap.String("key", logging.TruncateString(key, 12)))
	return true
}

// SweepExpired removes every entry past TTL and returns the count removed.
// Idempotent; also run once at startup.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepExpiredLocked()
}

// Stats returns a consistent snapshot of the cache counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.stats.Hits + s.stats.Misses
	rate := 0.0
	if total > 0 {
		rate = float64(s.stats.Hits) / float64(total) * 100
	}

	return Stats{
		Entries:        len(s.entries),
		MaxEntries:     s.maxEntries,
		TTL:            s.ttl,
		Hits:           s.stats.Hits,
		Misses:         s.stats.Misses,
		HitRatePercent: math.Round(rate*100) / 100,
		Saves:          s.stats.Saves,
		Evictions:      s.stats.Evictions,
		LastCleanup:    s.stats.LastCleanup,
		SizeBytes:      s.indexSizeLocked(),
	}
}

// ListRecent returns summaries of up to limit entries, most recently accessed
// first.
func (s *Store) ListRecent(limit int) []EntrySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*cacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessed.After(entries[j].LastAccessed)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	summaries := make([]EntrySummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, EntrySummary{
			Key:               logging.TruncateString(e.CacheKey, 16),
			ValidationRequest: logging.TruncateString(e.ValidationRequest, 100),
			Tables:            fmt.Sprintf("%s vs %s", e.LegacyTable, e.ProdTable),
			CreatedAt:         e.CreatedAt,
			LastAccessed:      e.LastAccessed,
			AccessCount:       e.AccessCount,
			AgeHours:          math.Round(time.Since(e.CreatedAt).Hours()*10) / 10,
		})
	}
	return summaries
}

func (s *Store) isExpired(entry *cacheEntry) bool {
	return time.Since(entry.CreatedAt) > s.ttl
}

func (s *Store) sweepExpiredLocked() int {
	var expired []string
	for key, entry := range s.entries {
		if s.isExpired(entry) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(s.entries, key)
		s.stats.Evictions++
	}

	if len(expired) > 0 {
		s.logger.Debug("removed expired cache entries", zap.Int("count", len(expired)))
		s.saveIndexLocked()
	}
	s.stats.LastCleanup = time.Now()
	s.saveStatsLocked()
	return len(expired)
}

func (s *Store) evictOldestLocked() {
	entries := make([]*cacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessed.Before(entries[j].LastAccessed)
	})

	evictCount := len(entries) / 10
	if evictCount < 1 {
		evictCount = 1
	}
	for _, e := range entries[:evictCount] {
		delete(s.entries, e.CacheKey)
		s.stats.Evictions++
	}
	s.logger.Debug("evicted oldest cache entries", zap.Int("count", evictCount))
}

func (s *Store) loadIndex() {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read cache index", zap.Error(err))
		}
		return
	}

	var index cacheIndex
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Error("failed to parse cache index, starting empty", zap.Error(err))
		s.entries = make(map[string]*cacheEntry)
		return
	}

	for _, entry := range index.Entries {
		s.entries[entry.CacheKey] = entry
	}
}

// saveIndexLocked rewrites the index atomically: the full index goes to a temp
// file which is then renamed over the live one, never exposing a partial write.
func (s *Store) saveIndexLocked() {
	entries := make([]*cacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}

	index := cacheIndex{
		Version:     cacheVersion,
		LastUpdated: time.Now(),
		Entries:     entries,
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode cache index", zap.Error(err))
		return
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("failed to write cache index", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		s.logger.Error("failed to replace cache index", zap.Error(err))
	}
}

func (s *Store) loadStats() {
	data, err := os.ReadFile(s.statsPath())
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &s.stats); err != nil {
		s.logger.Debug("could not parse cache stats", zap.Error(err))
	}
}

func (s *Store) saveStatsLocked() {
	data, err := json.MarshalIndent(s.stats, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(s.statsPath(), data, 0o644); err != nil {
		s.logger.Debug("could not save cache stats", zap.Error(err))
	}
}

func (s *Store) indexSizeLocked() int64 {
	info, err := os.Stat(s.indexPath())
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, cacheIndexFile)
}

func (s *Store) statsPath() string {
	return filepath.Join(s.dir, cacheStatsFile)
}
