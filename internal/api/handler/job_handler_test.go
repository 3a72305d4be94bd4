package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cuongbtq/review-photo-queue/internal/api/dto"
	"github.com/cuongbtq/review-photo-queue/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	routingKey string
	msg        amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{routingKey: routingKey, msg: msg})
	return nil
}

func (p *fakePublisher) IsConnected() bool { return p.err == nil }

var profileDef = queue.Definition{Name: queue.ProfileImage, Queue: "profile_images", Route: "/add-profile-image-job"}

func serve(t *testing.T, h *JobHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST(profileDef.Route, h.AddJob(profileDef))

	req := httptest.NewRequest(http.MethodPost, profileDef.Route, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newHandler(pub Publisher, key string) *JobHandler {
	return NewJobHandler(&Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Publisher: pub,
		AuthKey:   key,
	})
}

func TestAddJob(t *testing.T) {
	tests := []struct {
		name       string
		authKey    string
		body       string
		publishErr error
		wantStatus int
		wantError  string
	}{
		{
			name:       "wrong key",
			authKey:    "s3cret",
			body:       `{"key":"nope","review_id":"rev-42","image_url":"http://img/a.jpg"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "missing key",
			authKey:    "s3cret",
			body:       `{"review_id":"rev-42","image_url":"http://img/a.jpg"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "empty configured key never authorizes",
			authKey:    "",
			body:       `{"key":"","review_id":"rev-42","image_url":"http://img/a.jpg"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "not json",
			authKey:    "s3cret",
			body:       `key=s3cret`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "auth checked before validation",
			authKey:    "s3cret",
			body:       `{"key":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "missing review id",
			authKey:    "s3cret",
			body:       `{"key":"s3cret","image_url":"http://img/a.jpg"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing review_id or image_url",
		},
		{
			name:       "blank image url",
			authKey:    "s3cret",
			body:       `{"key":"s3cret","review_id":"rev-42","image_url":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing review_id or image_url",
		},
		{
			name:       "broker failure",
			authKey:    "s3cret",
			body:       `{"key":"s3cret","review_id":"rev-42","image_url":"http://img/a.jpg"}`,
			publishErr: errors.New("channel closed"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to add job",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.publishErr}
			w := serve(t, newHandler(pub, tt.authKey), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Empty(t, pub.sent)
		})
	}
}

func TestAddJob_Success(t *testing.T) {
	pub := &fakePublisher{}
	w := serve(t, newHandler(pub, "s3cret"), `{"key":"s3cret","review_id":"rev-42","image_url":"http://img/a.jpg"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.AddJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Job added to queue", resp.Message)
	assert.Equal(t, "profile_image", resp.Queue)
	_, err := uuid.Parse(resp.JobID)
	assert.NoError(t, err)

	require.Len(t, pub.sent, 1)
	sent := pub.sent[0]
	assert.Equal(t, "profile_images", sent.routingKey)
	assert.Equal(t, resp.JobID, sent.msg.MessageId)
	assert.Equal(t, "profile_image", sent.msg.Type)
	assert.Equal(t, queue.ContentType, sent.msg.ContentType)

	job, err := queue.Decode(sent.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, queue.Job{ReviewID: "rev-42", ImageURL: "http://img/a.jpg"}, job)
}
