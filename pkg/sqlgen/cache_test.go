package sqlgen

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testStore(t *testing.T, ttl time.Duration, maxEntries int) *Store {
	t.Helper()
	return NewStore(t.TempDir(), ttl, maxEntries, zap.NewNop())
}

func numberedRequest(i int) Request {
	return Request{
		LegacyTable:       fmt.Sprintf("legacy_db.t%d", i),
		ProdTable:         "prod_db.p",
		ValidationRequest: "compare row counts",
	}
}

func TestStore_PutGet(t *testing.T) {
	store := testStore(t, time.Hour, 10)
	req := baseRequest()
	res := Result{
		LegacySQL:   "SELECT COUNT(*) FROM legacy_db.fact_orders;",
		ProdSQL:     "SELECT COUNT(*) FROM prod_db.fact_orders;",
		Explanation: "Row count comparison",
		Origin:      OriginGenerated,
	}

	if _, ok := store.Get(req); ok {
		t.Fatal("expected miss on empty store")
	}

	store.Put(req, res)

	got, ok := store.Get(req)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.LegacySQL != res.LegacySQL || got.ProdSQL != res.ProdSQL || got.Explanation != res.Explanation {
		t.Errorf("got %+v, want stored result", got)
	}
	if got.Origin != OriginCache {
		t.Errorf("Origin = %q, want %q", got.Origin, OriginCache)
	}
}

func TestStore_EquivalentRequestHits(t *testing.T) {
	store := testStore(t, time.Hour, 10)
	store.Put(baseRequest(), Result{LegacySQL: "SELECT 1;"})

	loud := Request{
		LegacyTable:       "  LEGACY_DB.FACT_ORDERS ",
		ProdTable:         "PROD_DB.FACT_ORDERS",
		ValidationRequest: "Compare Row Counts",
	}
	if _, ok := store.Get(loud); !ok {
		t.Error("expected hit for a request equivalent after normalization")
	}
}

func TestStore_Overwrite(t *testing.T) {
	store := testStore(t, time.Hour, 10)
	req := baseRequest()

	store.Put(req, Result{LegacySQL: "SELECT 1;"})
	store.Put(req, Result{LegacySQL: "SELECT 2;"})

	got, ok := store.Get(req)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.LegacySQL != "SELECT 2;" {
		t.Errorf("LegacySQL = %q, want latest write", got.LegacySQL)
	}
	if n := store.Stats().Entries; n != 1 {
		t.Errorf("Entries = %d, want 1", n)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	store := testStore(t, 60*time.Millisecond, 10)
	req := baseRequest()
	store.Put(req, Result{LegacySQL: "SELECT 1;"})

	if _, ok := store.Get(req); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := store.Get(req); ok {
		t.Fatal("expected miss after expiry")
	}
	if ev := store.Stats().Evictions; ev != 1 {
		t.Errorf("Evictions = %d, want 1", ev)
	}
}

func TestStore_StartupSweep(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	first := NewStore(dir, 30*time.Millisecond, 10, logger)
	first.Put(baseRequest(), Result{LegacySQL: "SELECT 1;"})

	time.Sleep(60 * time.Millisecond)

	second := NewStore(dir, 30*time.Millisecond, 10, logger)
	if n := second.Stats().Entries; n != 0 {
		t.Errorf("Entries = %d, want 0 after startup sweep", n)
	}
}

func TestStore_EvictionBound(t *testing.T) {
	store := testStore(t, time.Hour, 5)

	for i := 0; i < 8; i++ {
		store.Put(numberedRequest(i), Result{LegacySQL: fmt.Sprintf("SELECT %d;", i)})
		if n := store.Stats().Entries; n > 5 {
			t.Fatalf("Entries = %d after put %d, want at most 5", n, i)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if _, ok := store.Get(numberedRequest(0)); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := store.Get(numberedRequest(7)); !ok {
		t.Error("expected newest entry to survive")
	}
}

func TestStore_EvictionSparesRecentlyAccessed(t *testing.T) {
	store := testStore(t, time.Hour, 5)

	for i := 0; i < 5; i++ {
		store.Put(numberedRequest(i), Result{LegacySQL: "SELECT 1;"})
		time.Sleep(2 * time.Millisecond)
	}

	// Touch the oldest entry so the next eviction falls on entry 1.
	if _, ok := store.Get(numberedRequest(0)); !ok {
		t.Fatal("expected hit for entry 0")
	}
	time.Sleep(2 * time.Millisecond)
	store.Put(numberedRequest(5), Result{LegacySQL: "SELECT 1;"})

	if _, ok := store.Get(numberedRequest(0)); !ok {
		t.Error("recently accessed entry must survive eviction")
	}
	if _, ok := store.Get(numberedRequest(1)); ok {
		t.Error("least recently accessed entry must be evicted")
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()
	req := baseRequest()
	res := Result{
		LegacySQL:   "SELECT COUNT(*) FROM legacy_db.fact_orders;",
		Explanation: "Row count",
	}

	first := NewStore(dir, time.Hour, 10, logger)
	first.Put(req, res)

	second := NewStore(dir, time.Hour, 10, logger)
	got, ok := second.Get(req)
	if !ok {
		t.Fatal("expected hit from reloaded index")
	}
	if got.LegacySQL != res.LegacySQL || got.Explanation != res.Explanation {
		t.Errorf("got %+v, want persisted result", got)
	}
}

func TestStore_CorruptIndexStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sql_cache.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir, time.Hour, 10, zap.NewNop())
	if n := store.Stats().Entries; n != 0 {
		t.Errorf("Entries = %d, want 0 for corrupt index", n)
	}

	store.Put(baseRequest(), Result{LegacySQL: "SELECT 1;"})
	if _, ok := store.Get(baseRequest()); !ok {
		t.Error("store must keep working after a corrupt index load")
	}
}

func TestStore_Invalidate(t *testing.T) {
	store := testStore(t, time.Hour, 10)
	req := baseRequest()
	store.Put(req, Result{LegacySQL: "SELECT 1;"})

	if !store.Invalidate(req) {
		t.Fatal("expected Invalidate to report removal")
	}
	if _, ok := store.Get(req); ok {
		t.Error("expected miss after invalidation")
	}
	if store.Invalidate(req) {
		t.Error("second Invalidate must report absence")
	}
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Hour, 10, zap.NewNop())
	store.Put(numberedRequest(0), Result{LegacySQL: "SELECT 1;"})
	store.Put(numberedRequest(1), Result{LegacySQL: "SELECT 2;"})

	if n := store.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if n := store.Stats().Entries; n != 0 {
		t.Errorf("Entries = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "sql_cache.json")); !os.IsNotExist(err) {
		t.Error("expected index file removed")
	}
	if n := store.Clear(); n != 0 {
		t.Errorf("second Clear() = %d, want 0", n)
	}
}

func TestStore_Stats(t *testing.T) {
	store := testStore(t, time.Hour, 10)
	req := baseRequest()

	store.Get(req)
	store.Put(req, Result{LegacySQL: "SELECT 1;"})
	store.Get(req)

	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRatePercent != 50 {
		t.Errorf("HitRatePercent = %v, want 50", stats.HitRatePercent)
	}
	if stats.Saves != 1 {
		t.Errorf("Saves = %d, want 1", stats.Saves)
	}
	if stats.Entries != 1 || stats.MaxEntries != 10 {
		t.Errorf("Entries/MaxEntries = %d/%d, want 1/10", stats.Entries, stats.MaxEntries)
	}
}

func TestStore_ListRecent(t *testing.T) {
	store := testStore(t, time.Hour, 10)

	for i := 0; i < 3; i++ {
		store.Put(numberedRequest(i), Result{LegacySQL: "SELECT 1;"})
		time.Sleep(2 * time.Millisecond)
	}
	store.Get(numberedRequest(0))

	recent := store.ListRecent(2)
	if len(recent) != 2 {
		t.Fatalf("ListRecent(2) returned %d entries", len(recent))
	}
	if recent[0].Tables != "legacy_db.t0 vs prod_db.p" {
		t.Errorf("most recent = %q, want the just-accessed entry first", recent[0].Tables)
	}
	if recent[0].AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", recent[0].AccessCount)
	}
}
