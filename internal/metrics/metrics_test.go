package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordCommand("list", "ok")
	m.RecordCommand("list", "ok")
	m.RecordAction("staged")
	m.RecordOracle("error")
	m.SetSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("staged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCommand("list", "ok")
		m.ObserveRoute("list", 0.1)
		m.RecordAction("applied")
		m.SetSessions(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordAction("applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `assistant_actions_total{event="applied"} 1`)
}
