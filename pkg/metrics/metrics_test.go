package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesObservedMetrics(t *testing.T) {
	r := New()
	r.ObserveDelivered("kvstore.put")
	r.ObserveCheckTxRejected("duplicate")
	r.SetMigrationActive("legacy_error_code", true)
	r.ValidatorCacheSize.Set(3)
	r.CommitLatency.Observe(0.01)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, "bridge_delivered_tx_total"))
	require.True(t, strings.Contains(body, `method="kvstore.put"`))
	require.True(t, strings.Contains(body, "bridge_check_tx_rejected_total"))
	require.True(t, strings.Contains(body, "bridge_migration_active"))
	require.True(t, strings.Contains(body, "bridge_validator_cache_size 3"))
}

func TestNewRegistryIsIsolated(t *testing.T) {
	// Constructing two registries must not panic on duplicate registration
	// against a shared global default, since each owns its own registry.
	require.NotPanics(t, func() {
		New()
		New()
	})
}
