package monitoring

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage(ResultExported, 1024, 2*time.Millisecond)
	m.RecordMessage(ResultExported, 2048, time.Millisecond)
	m.RecordMessage(ResultError, 0, 0)
	m.RecordAttachment(ResultDecoded, 10)
	m.RecordAttachment(ResultSkipped, 0)
	m.RecordAttachmentWarning("size_mismatch")
	m.RecordPanic()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues(ResultExported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttachmentsTotal.WithLabelValues(ResultDecoded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttachmentWarnings.WithLabelValues("size_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanicsTotal))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordPanic()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PanicsTotal))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMessage(ResultExported, 1, time.Second)
		m.RecordAttachment(ResultDecoded, 1)
		m.RecordAttachmentWarning("hex_fallback")
		m.RecordPanic()
		m.RecordRun(time.Second, time.Now())
	})
}

func TestMetrics_HTTPHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordMessage(ResultEmpty, 0, 0)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mailexport_messages_total{result="empty"} 1`)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(3*time.Second, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "export.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mailexport_run_duration_seconds 3")
	assert.Contains(t, string(data), "mailexport_last_run_finished_timestamp_seconds 1.7e+09")
}
