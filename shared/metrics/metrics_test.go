package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(JobsProcessed.WithLabelValues("profile_image", "completed"))
	JobsProcessed.WithLabelValues("profile_image", "completed").Inc()
	after := testutil.ToFloat64(JobsProcessed.WithLabelValues("profile_image", "completed"))

	assert.Equal(t, before+1, after)
}

func TestHandler(t *testing.T) {
	Reconciliations.WithLabelValues("inserted").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "review_queue_reconciliations_total")
}
