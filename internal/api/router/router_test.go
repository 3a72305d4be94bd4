package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cuongbtq/review-photo-queue/internal/api/handler"
	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	keys      []string
	connected bool
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, _ amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func setup(t *testing.T, pub *fakePublisher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := queue.NewRegistry([]queue.Definition{
		{Name: queue.Default, Queue: "review_photos", Route: "/add-job"},
		{Name: queue.ProfileImage, Queue: "profile_images", Route: "/add-profile-image-job"},
	})
	require.NoError(t, err)

	return SetupRouter(&handler.Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Publisher: pub,
		Registry:  reg,
		AuthKey:   "s3cret",
	})
}

func TestSetupRouter_RoutesPerQueue(t *testing.T) {
	tests := []struct {
		route    string
		wantKey  string
		wantName string
	}{
		{route: "/add-job", wantKey: "review_photos", wantName: `"queue":"default"`},
		{route: "/add-profile-image-job", wantKey: "profile_images", wantName: `"queue":"profile_image"`},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			pub := &fakePublisher{connected: true}
			r := setup(t, pub)

			body := `{"key":"s3cret","review_id":"rev-42","image_url":"http://img/a.jpg"}`
			req := httptest.NewRequest(http.MethodPost, tt.route, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantName)
			assert.Equal(t, []string{tt.wantKey}, pub.keys)
		})
	}
}

func TestSetupRouter_UnknownRoute(t *testing.T) {
	pub := &fakePublisher{connected: true}
	r := setup(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/add-other-job", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, pub.keys)
}

func TestSetupRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantStatus int
		wantBody   string
	}{
		{name: "connected", connected: true, wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "disconnected", connected: false, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(t, &fakePublisher{connected: tt.connected})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestSetupRouter_Metrics(t *testing.T) {
	r := setup(t, &fakePublisher{connected: true})

	// one request first so the http counters have a sample
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "review_queue_http_requests_total")
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := setup(t, &fakePublisher{connected: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/add-job", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
