package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/miky-rola/signals-backend/internal/cache"
	"github.com/miky-rola/signals-backend/internal/models"
)

func TestSignalGetServesCachedPayload(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("cache@example.com", "cacher", "secret-pass", true, true, false)
	signal := env.createSignal("SPY", 80)

	rec := env.do(http.MethodGet, "/api/signals/1", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)
	first := rec.Body.Bytes()

	cached, errGet := env.store.Get(context.Background(), cache.SignalKey(signal.ID))
	if errGet != nil {
		t.Fatalf("expected cache fill after first read: %v", errGet)
	}
	if !bytes.Equal(cached, first) {
		t.Fatalf("cached payload differs from response:\n%s\n%s", cached, first)
	}

	// Mutating the row directly does not show up while the entry lives;
	// reads keep returning the cached bytes.
	if errUpdate := env.db.Model(&models.Signal{}).Where("id = ?", signal.ID).
		Update("confidence", 5).Error; errUpdate != nil {
		t.Fatalf("update signal: %v", errUpdate)
	}
	rec = env.do(http.MethodGet, "/api/signals/1", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)
	if !bytes.Equal(rec.Body.Bytes(), first) {
		t.Fatal("second read should be served from cache byte for byte")
	}
}

func TestSignalUpdateLeavesCacheAlone(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("stale@example.com", "staler", "secret-pass", true, true, false)
	signal := env.createSignal("QQQ", 70)

	rec := env.do(http.MethodGet, "/api/signals/1", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)
	first := rec.Body.Bytes()

	rec = env.do(http.MethodPatch, "/api/signals/1", map[string]any{"confidence": 10}, user.ID)
	requireStatus(t, rec, http.StatusOK)

	cached, errGet := env.store.Get(context.Background(), cache.SignalKey(signal.ID))
	if errGet != nil {
		t.Fatalf("cache entry should survive the update: %v", errGet)
	}
	if !bytes.Equal(cached, first) {
		t.Fatal("update must not rewrite or invalidate the cached payload")
	}
}

func TestSignalCreateWritesThrough(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("create@example.com", "creator", "secret-pass", true, true, false)

	expires := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	rec := env.do(http.MethodPost, "/api/signals", map[string]any{
		"ticker":          "iwm",
		"strategy":        "vrp",
		"vrp_zscore":      1.8,
		"vrp_ratio":       1.2,
		"expected_return": 0.04,
		"confidence":      65,
		"expires_at":      expires,
	}, user.ID)
	requireStatus(t, rec, http.StatusCreated)

	var created signalResponse
	env.decode(rec, &created)
	if created.Ticker != "IWM" || created.Strategy != models.StrategyVRP {
		t.Fatalf("created = %+v", created)
	}
	if !created.InLab {
		t.Fatal("in_lab should default to true")
	}

	cached, errGet := env.store.Get(context.Background(), cache.SignalKey(created.ID))
	if errGet != nil {
		t.Fatalf("expected write-through cache entry: %v", errGet)
	}
	if !bytes.Equal(cached, rec.Body.Bytes()) {
		t.Fatal("cached payload should match the creation response")
	}
}

func TestSignalCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("valid@example.com", "validator", "secret-pass", true, true, false)

	expires := time.Now().Add(time.Hour).UTC()
	base := map[string]any{
		"ticker":          "SPY",
		"strategy":        "VRP",
		"vrp_zscore":      1.0,
		"vrp_ratio":       1.0,
		"expected_return": 0.01,
		"confidence":      50,
		"expires_at":      expires,
	}

	bad := func(key string, value any) map[string]any {
		body := make(map[string]any, len(base))
		for k, v := range base {
			body[k] = v
		}
		body[key] = value
		return body
	}

	rec := env.do(http.MethodPost, "/api/signals", bad("strategy", "MOMENTUM"), user.ID)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodPost, "/api/signals", bad("confidence", 100), user.ID)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodPost, "/api/signals", bad("confidence", -1), user.ID)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodPost, "/api/signals", bad("ticker", ""), user.ID)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestSignalPerformance(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("perf@example.com", "perfer", "secret-pass", true, true, false)
	other := env.createUser("perf2@example.com", "perfer2", "secret-pass", true, true, false)
	third := env.createUser("perf3@example.com", "perfer3", "secret-pass", true, true, false)
	signal := env.createSignal("SPY", 80)

	pnl1, pnl2 := 10.0, 20.0
	rows := []models.UserInteraction{
		{UserID: user.ID, SignalID: signal.ID, Status: models.InteractionTaken, PNL: &pnl1},
		{UserID: other.ID, SignalID: signal.ID, Status: models.InteractionTaken, PNL: &pnl2},
		{UserID: third.ID, SignalID: signal.ID, Status: models.InteractionWatching},
	}
	for i := range rows {
		if errCreate := env.db.Create(&rows[i]).Error; errCreate != nil {
			t.Fatalf("create interaction: %v", errCreate)
		}
	}

	rec := env.do(http.MethodGet, "/api/signals/1/performance", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)

	var result struct {
		AvgPNL      *float64 `json:"avg_pnl"`
		TotalTrades int64    `json:"total_trades"`
	}
	env.decode(rec, &result)
	if result.AvgPNL == nil || *result.AvgPNL != 15.0 {
		t.Fatalf("avg_pnl = %v, want 15", result.AvgPNL)
	}
	if result.TotalTrades != 2 {
		t.Fatalf("total_trades = %d, want 2", result.TotalTrades)
	}
}

func TestSignalPerformanceEmpty(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("empty@example.com", "emptier", "secret-pass", true, true, false)
	env.createSignal("TLT", 40)

	rec := env.do(http.MethodGet, "/api/signals/1/performance", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)

	var raw map[string]json.RawMessage
	env.decode(rec, &raw)
	if string(raw["avg_pnl"]) != "null" {
		t.Fatalf("avg_pnl = %s, want null", raw["avg_pnl"])
	}
	if string(raw["total_trades"]) != "0" {
		t.Fatalf("total_trades = %s, want 0", raw["total_trades"])
	}
}

func TestSignalListOrdering(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("order@example.com", "orderer", "secret-pass", true, true, false)
	env.createSignal("AAA", 30)
	env.createSignal("BBB", 90)
	env.createSignal("CCC", 60)

	rec := env.do(http.MethodGet, "/api/signals?ordering=-confidence", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)

	var page struct {
		Count   int64            `json:"count"`
		Results []signalResponse `json:"results"`
	}
	env.decode(rec, &page)
	if page.Count != 3 {
		t.Fatalf("count = %d, want 3", page.Count)
	}
	var got []int
	for _, row := range page.Results {
		got = append(got, row.Confidence)
	}
	want := []int{90, 60, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("confidence order = %v, want %v", got, want)
		}
	}

	// Unknown ordering fields are dropped, not interpolated.
	rec = env.do(http.MethodGet, "/api/signals?ordering=drop+table", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)
}

func TestSignalOrderingAllowListColumns(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("columns@example.com", "columns", "secret-pass", true, true, false)
	env.createSignal("SPY", 80)
	env.createSignal("QQQ", 40)

	// Every allow-listed field must resolve to a real column, ascending and
	// descending.
	for field := range signalOrderingFields {
		for _, ordering := range []string{field, "-" + field} {
			rec := env.do(http.MethodGet, "/api/signals?ordering="+ordering, nil, user.ID)
			if rec.Code != http.StatusOK {
				t.Fatalf("ordering=%s: status = %d (body %q)", ordering, rec.Code, rec.Body.String())
			}
		}
	}
}

func TestSignalUpdateAllFields(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("full@example.com", "fuller", "secret-pass", true, true, false)
	env.createSignal("SPY", 80)

	expires := time.Now().Add(96 * time.Hour).UTC().Truncate(time.Second)
	rec := env.do(http.MethodPatch, "/api/signals/1", map[string]any{
		"ticker":          "tlt",
		"strategy":        "skew",
		"vrp_zscore":      -0.7,
		"vrp_ratio":       0.9,
		"expected_return": 0.02,
		"confidence":      33,
		"in_lab":          false,
		"expires_at":      expires,
	}, user.ID)
	requireStatus(t, rec, http.StatusOK)

	var updated signalResponse
	env.decode(rec, &updated)
	if updated.Ticker != "TLT" || updated.Strategy != models.StrategySkew {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.VRPZScore != -0.7 || updated.VRPRatio != 0.9 || updated.ExpectedReturn != 0.02 {
		t.Fatalf("floats not persisted: %+v", updated)
	}
	if updated.Confidence != 33 || updated.InLab {
		t.Fatalf("confidence/in_lab not persisted: %+v", updated)
	}
	if !updated.ExpiresAt.Equal(expires) {
		t.Fatalf("expires_at = %v, want %v", updated.ExpiresAt, expires)
	}

	var row models.Signal
	if errFind := env.db.First(&row, 1).Error; errFind != nil {
		t.Fatalf("load signal: %v", errFind)
	}
	if row.VRPZScore != -0.7 {
		t.Fatalf("vrp_zscore column = %v, want -0.7", row.VRPZScore)
	}
}

func TestSignalSearchByTicker(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("search@example.com", "searcher", "secret-pass", true, true, false)
	env.createSignal("SPY", 80)
	env.createSignal("SPXL", 70)
	env.createSignal("QQQ", 60)

	rec := env.do(http.MethodGet, "/api/signals?search=sp", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)

	var page struct {
		Count   int64            `json:"count"`
		Results []signalResponse `json:"results"`
	}
	env.decode(rec, &page)
	if page.Count != 2 {
		t.Fatalf("count = %d, want 2", page.Count)
	}
}

func TestSignalCacheFlush(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("plain@example.com", "plain", "secret-pass", true, true, false)
	staff := env.createUser("admin@example.com", "admin", "secret-pass", true, true, true)
	signal := env.createSignal("SPY", 80)

	rec := env.do(http.MethodGet, "/api/signals/1", nil, user.ID)
	requireStatus(t, rec, http.StatusOK)
	if _, errGet := env.store.Get(context.Background(), cache.SignalKey(signal.ID)); errGet != nil {
		t.Fatalf("expected warm cache: %v", errGet)
	}

	rec = env.do(http.MethodDelete, "/api/cache/signals", nil, user.ID)
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodDelete, "/api/cache/signals", nil, staff.ID)
	requireStatus(t, rec, http.StatusOK)
	if _, errGet := env.store.Get(context.Background(), cache.SignalKey(signal.ID)); errGet == nil {
		t.Fatal("cache entry should be gone after flush")
	}
}

func TestSignalDeleteRemovesInteractions(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("delete@example.com", "deleter", "secret-pass", true, true, false)
	signal := env.createSignal("GLD", 55)

	row := models.UserInteraction{UserID: user.ID, SignalID: signal.ID, Status: models.InteractionWatching}
	if errCreate := env.db.Create(&row).Error; errCreate != nil {
		t.Fatalf("create interaction: %v", errCreate)
	}

	rec := env.do(http.MethodDelete, "/api/signals/1", nil, user.ID)
	requireStatus(t, rec, http.StatusNoContent)

	var count int64
	if errCount := env.db.Model(&models.UserInteraction{}).Where("signal_id = ?", signal.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count interactions: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("interactions left after signal delete = %d", count)
	}
}
