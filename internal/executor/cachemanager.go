package executor

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/fingerprint"
	"github.com/pgsqlite/pgsqlite/internal/translator"
)

// CacheManager owns the three fingerprint-keyed caches spec.md §4.4's
// Caching Layer names: the plan cache (translated SQL + metadata, folding in
// what the spec separately calls the "execution cache" since both are keyed
// by the same fingerprint and hold the same pipeline output), the row
// description cache, and the result set cache. The result set cache is sized,
// built and cleared here, but no method stores into or reads from it. All
// three sit on top of the generic cache.LRU primitive.
type CacheManager struct {
	plan       *cache.LRU[translator.Result]
	rowDesc    *cache.LRU[[]ColumnDescriptor]
	resultSet  *cache.LRU[cachedResultSet]
	fillGroup  singleflight.Group
}

type cachedResultSet struct {
	Columns []ColumnDescriptor
	Rows    [][]any
}

// CacheConfig sizes each cache; zero fields fall back to spec.md §6's
// documented defaults.
type CacheConfig struct {
	PlanCapacity      int
	PlanTTL           time.Duration
	RowDescCapacity   int
	RowDescTTL        time.Duration
	ResultSetCapacity int
	ResultSetTTL      time.Duration
}

func (cfg CacheConfig) withDefaults() CacheConfig {
	if cfg.PlanCapacity <= 0 {
		cfg.PlanCapacity = 1000
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = 10 * time.Minute
	}
	if cfg.RowDescCapacity <= 0 {
		cfg.RowDescCapacity = 1000
	}
	if cfg.RowDescTTL <= 0 {
		cfg.RowDescTTL = 10 * time.Minute
	}
	if cfg.ResultSetCapacity <= 0 {
		cfg.ResultSetCapacity = 200
	}
	if cfg.ResultSetTTL <= 0 {
		cfg.ResultSetTTL = time.Minute
	}
	return cfg
}

// NewCacheManager builds a CacheManager.
func NewCacheManager(cfg CacheConfig) *CacheManager {
	cfg = cfg.withDefaults()
	return &CacheManager{
		plan:      cache.NewLRU[translator.Result](cfg.PlanCapacity, cfg.PlanTTL),
		rowDesc:   cache.NewLRU[[]ColumnDescriptor](cfg.RowDescCapacity, cfg.RowDescTTL),
		resultSet: cache.NewLRU[cachedResultSet](cfg.ResultSetCapacity, cfg.ResultSetTTL),
	}
}

// InvalidateAll clears every cache, called after any DDL statement commits
// (spec.md §4.4: "All caches are invalidated en bloc on any DDL statement").
func (m *CacheManager) InvalidateAll() {
	m.plan.Clear()
	m.rowDesc.Clear()
	m.resultSet.Clear()
}

func planKey(sqlText string) string { return fingerprint.Of(sqlText) }

// CachedPlan returns the cached Translation Pipeline output for sqlText's
// fingerprint, if present.
func (m *CacheManager) CachedPlan(sqlText string) (translator.Result, bool) {
	return m.plan.Get(planKey(sqlText))
}

// PutPlan caches res under sqlText's fingerprint.
func (m *CacheManager) PutPlan(sqlText string, res translator.Result) {
	m.plan.Put(planKey(sqlText), res)
}

// CachedRowDescription returns the cached column descriptors for a prepared
// statement fingerprint, if present.
func (m *CacheManager) CachedRowDescription(fp string) ([]ColumnDescriptor, bool) {
	return m.rowDesc.Get(fp)
}

// PutRowDescription caches cols under fp.
func (m *CacheManager) PutRowDescription(fp string, cols []ColumnDescriptor) {
	m.rowDesc.Put(fp, cols)
}

// GetOrTranslate returns the cached plan for sqlText, or calls fill to
// compute and cache it. Concurrent misses for the same fingerprint are
// deduplicated through singleflight so only one goroutine runs the
// Translation Pipeline for a given statement shape at a time (spec.md §4.4:
// "cache-fill deduplication so concurrent identical misses do not duplicate
// work").
func (m *CacheManager) GetOrTranslate(sqlText string, fill func() (translator.Result, error)) (translator.Result, error) {
	key := planKey(sqlText)
	if res, ok := m.plan.Get(key); ok {
		return res, nil
	}

	v, err, _ := m.fillGroup.Do(key, func() (any, error) {
		if res, ok := m.plan.Get(key); ok {
			return res, nil
		}
		res, err := fill()
		if err != nil {
			return translator.Result{}, err
		}
		m.plan.Put(key, res)
		return res, nil
	})
	if err != nil {
		return translator.Result{}, err
	}
	return v.(translator.Result), nil
}
