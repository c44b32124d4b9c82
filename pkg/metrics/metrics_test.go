package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func counterValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithRegistry(registry), WithNamespace("test"))

		Convey("When recording cache and engine events", func() {
			manager.CacheHit("rank")
			manager.CacheHit("rank")
			manager.CacheMiss("history")
			manager.SortKeyFallback("player")
			manager.StoreError("ListByGroup")
			manager.SnapshotsAppended(3)
			manager.CacheInvalidated(2)
			manager.ObserveEngine("rank", 12*time.Millisecond)
			manager.ObserveHTTPRequest("/api/v1/kingdoms", "GET", 200, 5*time.Millisecond)

			Convey("Then the counters should reflect them", func() {
				So(counterValue(registry, "test_cache_hits_total"), ShouldEqual, 2)
				So(counterValue(registry, "test_cache_misses_total"), ShouldEqual, 1)
				So(counterValue(registry, "test_engine_sort_key_fallbacks_total"), ShouldEqual, 1)
				So(counterValue(registry, "test_store_errors_total"), ShouldEqual, 1)
				So(counterValue(registry, "test_store_snapshots_appended_total"), ShouldEqual, 3)
				So(counterValue(registry, "test_cache_invalidations_total"), ShouldEqual, 2)
				So(counterValue(registry, "test_http_requests_total"), ShouldEqual, 1)
			})

			Convey("Then the handler should expose them", func() {
				rec := httptest.NewRecorder()
				manager.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
				body, _ := io.ReadAll(rec.Body)

				So(rec.Code, ShouldEqual, 200)
				So(string(body), ShouldContainSubstring, "test_engine_operation_duration_milliseconds")
			})
		})

		Convey("When the manager is nil", func() {
			var nilManager *Manager

			Convey("Then recording should be a no-op", func() {
				So(func() {
					nilManager.CacheHit("rank")
					nilManager.ObserveHTTPRequest("/", "GET", 200, time.Millisecond)
				}, ShouldNotPanic)
			})
		})
	})
}
