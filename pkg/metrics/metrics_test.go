package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestManagerRecordsEngineMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordMessageProcessed("user", 5*time.Millisecond)
	m.RecordThemesExtracted(2)
	m.RecordTopicShift("major_shift")
	m.SetEntitiesTracked("c1", 7)
	m.RecordEmbeddingComputed()
	m.RecordEmbeddingCacheHit("local")
	m.RecordRefExpansion("resolved")
	m.RecordRefsPruned(100)
	m.RecordStorageOperation("SaveRecord", time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"mnemos_messages_processed_total",
		"mnemos_themes_extracted_total",
		"mnemos_topic_shifts_total",
		"mnemos_embedding_cache_hits_total",
		"mnemos_refs_pruned_total",
		"mnemos_storage_operation_duration_seconds",
		"http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNoOpManagerIsSafe(t *testing.T) {
	m := NoOpManager()
	if m.Enabled() {
		t.Fatal("no-op manager must report disabled")
	}

	// None of these may panic with a nil registry.
	m.RecordMessageProcessed("user", time.Millisecond)
	m.RecordThemesExtracted(1)
	m.RecordTopicShift("no_shift")
	m.RecordEmbeddingComputed()
	m.RecordRefsPruned(1)
	m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("disabled metrics endpoint should 404, got %d", rec.Code)
	}
}
