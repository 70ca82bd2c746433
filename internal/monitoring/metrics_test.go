package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape 读取 /metrics 输出
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics(t *testing.T) {
	t.Run("记录提供商与轮询指标", func(t *testing.T) {
		m := NewMetrics()

		m.RecordProviderRequest("guerrillamail", "check_email", "ok", 120*time.Millisecond)
		m.RecordProviderRequest("guerrillamail", "check_email", "ok", 80*time.Millisecond)
		m.RecordPollTick("guerrillamail")
		m.RecordPollOutcome("Found")
		m.RecordSessionCreated("guerrillamail")
		m.RecordSessionsExpired(3)
		m.RecordStoreOperation("save", "ok")

		body := scrape(t, m)
		assert.Contains(t, body, `tempmail_provider_requests_total{operation="check_email",outcome="ok",provider="guerrillamail"} 2`)
		assert.Contains(t, body, `tempmail_poll_ticks_total{provider="guerrillamail"} 1`)
		assert.Contains(t, body, `tempmail_poll_outcomes_total{state="Found"} 1`)
		assert.Contains(t, body, `tempmail_sessions_created_total{provider="guerrillamail"} 1`)
		assert.Contains(t, body, `tempmail_sessions_expired_total 3`)
		assert.Contains(t, body, `tempmail_store_operations_total{operation="save",outcome="ok"} 1`)
	})

	t.Run("多个实例互不冲突", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewMetrics()
			NewMetrics()
		})
	})

	t.Run("nil接收者安全", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.RecordHTTPRequest("GET", "/", "200", time.Second)
			m.RecordProviderRequest("p", "op", "ok", time.Second)
			m.RecordPollTick("p")
			m.RecordPollOutcome("TimedOut")
			m.RecordStoreOperation("save", "ok")
			m.RecordSessionsExpired(1)
			m.RecordError("Internal", "cli")
			m.RecordPanic()
		})
	})
}
