package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/relay-be/internal/admin/dto"
	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	entries map[int64]*domain.DeadLetter
}

func newFakeDeadLetters(entries ...*domain.DeadLetter) *fakeDeadLetters {
	store := &fakeDeadLetters{entries: make(map[int64]*domain.DeadLetter)}
	for _, e := range entries {
		store.entries[e.ID] = e
	}
	return store
}

func (f *fakeDeadLetters) List(ctx context.Context, limit, offset int) ([]domain.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeadLetter, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeDeadLetters) Get(ctx context.Context, id int64) (*domain.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrDeadLetterNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeDeadLetters) MarkReplayed(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.ReplayedAt != nil {
		return domain.ErrDeadLetterNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string][][]byte)}
}

func (f *fakeQueue) Publish(ctx context.Context, queue string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[queue] = append(f.published[queue], body)
	return nil
}

func testEntry(t *testing.T, id int64) *domain.DeadLetter {
	t.Helper()
	payload, err := json.Marshal(&job.SendText{To: "+1", Text: "hi"})
	require.NoError(t, err)
	env := &job.Envelope{
		Version:       job.EnvelopeVersion,
		Type:          job.TypeSendText,
		CorrelationID: "corr-1",
		TenantID:      "t1",
		ChannelID:     "ch1",
		Attempt:       4,
		Payload:       payload,
	}
	body, err := env.Encode()
	require.NoError(t, err)
	return &domain.DeadLetter{
		ID:            id,
		Queue:         "outbound-send",
		JobType:       string(job.TypeSendText),
		CorrelationID: "corr-1",
		Envelope:      body,
		FailureType:   domain.FailureTypeTransient,
		Attempts:      5,
		LastError:     "provider flapping",
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestRouter(deadLetters DeadLetters, queue Queue) *gin.Engine {
	h := NewDeadLetterHandler(&Dependencies{
		Logger:      slog.New(slog.DiscardHandler),
		DeadLetters: deadLetters,
		Queue:       queue,
	})
	r := gin.New()
	r.GET("/api/v1/dead-letters", h.ListDeadLetters)
	r.GET("/api/v1/dead-letters/:id", h.GetDeadLetter)
	r.POST("/api/v1/dead-letters/:id/requeue", h.RequeueDeadLetter)
	return r
}

func TestListDeadLetters(t *testing.T) {
	r := newTestRouter(newFakeDeadLetters(testEntry(t, 1), testEntry(t, 2)), newFakeQueue())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dead-letters?limit=10", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ListDeadLettersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.DeadLetters, 2)
}

func TestGetDeadLetter(t *testing.T) {
	r := newTestRouter(newFakeDeadLetters(testEntry(t, 1)), newFakeQueue())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dead-letters/1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.DeadLetterDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "outbound-send", resp.Queue)
	assert.Equal(t, "provider flapping", resp.LastError)
	assert.NotEmpty(t, resp.Envelope, "the stored envelope is part of the inspection surface")
}

func TestGetDeadLetterNotFound(t *testing.T) {
	r := newTestRouter(newFakeDeadLetters(), newFakeQueue())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dead-letters/99", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDeadLetterBadID(t *testing.T) {
	r := newTestRouter(newFakeDeadLetters(), newFakeQueue())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dead-letters/banana", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequeueDeadLetter(t *testing.T) {
	store := newFakeDeadLetters(testEntry(t, 1))
	queue := newFakeQueue()
	r := newTestRouter(store, queue)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dead-letters/1/requeue", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	published := queue.published["outbound-send"]
	require.Len(t, published, 1)
	env, err := job.Decode(published[0])
	require.NoError(t, err)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, 0, env.Attempt, "requeue resets the attempt counter")

	entry, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, entry.ReplayedAt)
}

func TestRequeueDeadLetterTwiceConflicts(t *testing.T) {
	store := newFakeDeadLetters(testEntry(t, 1))
	queue := newFakeQueue()
	r := newTestRouter(store, queue)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/dead-letters/1/requeue", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/dead-letters/1/requeue", nil))

	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Len(t, queue.published["outbound-send"], 1, "a replayed entry is never republished")
}

func TestRequeueDeadLetterUnparsableEnvelope(t *testing.T) {
	entry := testEntry(t, 1)
	entry.Envelope = []byte("{{{")
	entry.FailureType = domain.FailureTypeValidation
	r := newTestRouter(newFakeDeadLetters(entry), newFakeQueue())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dead-letters/1/requeue", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
