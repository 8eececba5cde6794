package media

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
	"github.com/vutran-dev/relay-be/internal/provider"
)

type fakeMessages struct {
	mu        sync.Mutex
	locations map[string]string
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{locations: make(map[string]string)}
}

func (f *fakeMessages) SetMediaLocation(ctx context.Context, correlationID, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations[correlationID] = location
	return nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(ctx context.Context, body io.Reader, contentType, path string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return "mem://" + path, nil
}

func (m *memObjects) PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "mem://" + path, nil
}

// fetchClient pins an address-agnostic provider URL to the test server.
type rewriteTransport struct {
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := t.target + req.URL.Path
	newReq, err := http.NewRequestWithContext(req.Context(), req.Method, rewritten, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultTransport.RoundTrip(newReq)
}

func downloadEnvelope(t *testing.T, mediaRef string) (*job.Envelope, job.Payload) {
	t.Helper()
	payload := &job.MediaDownload{MediaRef: mediaRef, MimeType: "image/jpeg"}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &job.Envelope{
		Version:       job.EnvelopeVersion,
		Type:          job.TypeMediaDownload,
		CorrelationID: "corr-m1",
		TenantID:      "t1",
		ChannelID:     "ch1",
		Payload:       body,
	}, payload
}

func newMediaHandler(messages *fakeMessages, objects *memObjects, serverURL string, opts ...provider.MockOption) *Handler {
	return NewHandler(Config{
		Logger:       slog.New(slog.DiscardHandler),
		Messages:     messages,
		Provider:     provider.NewMock(opts...),
		Objects:      objects,
		HTTPClient:   &http.Client{Transport: &rewriteTransport{target: serverURL}},
		FetchTimeout: 5 * time.Second,
	})
}

func TestHandleDownloadStoresObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	messages := newFakeMessages()
	objects := newMemObjects()
	h := newMediaHandler(messages, objects, server.URL)

	env, payload := downloadEnvelope(t, "media-9")
	require.NoError(t, h.handleDownload(context.Background(), env, payload))

	assert.Equal(t, []byte("jpeg-bytes"), objects.objects["t1/ch1/corr-m1"])
	assert.Equal(t, "mem://t1/ch1/corr-m1", messages.locations["corr-m1"])
}

func TestHandleDownloadGoneMediaIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := newMediaHandler(newFakeMessages(), newMemObjects(), server.URL)

	env, payload := downloadEnvelope(t, "media-9")
	err := h.handleDownload(context.Background(), env, payload)

	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
}

func TestHandleDownloadServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	h := newMediaHandler(newFakeMessages(), newMemObjects(), server.URL)

	env, payload := downloadEnvelope(t, "media-9")
	err := h.handleDownload(context.Background(), env, payload)

	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

func TestHandleDownloadExpiredReferenceIsPermanent(t *testing.T) {
	h := newMediaHandler(newFakeMessages(), newMemObjects(), "http://unused.invalid",
		provider.WithScenario(provider.ScenarioExpiredMedia))

	env, payload := downloadEnvelope(t, "media-9")
	err := h.handleDownload(context.Background(), env, payload)

	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
}

func TestHandleDownloadReplayOverwrites(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	messages := newFakeMessages()
	objects := newMemObjects()
	h := newMediaHandler(messages, objects, server.URL)

	env, payload := downloadEnvelope(t, "media-9")
	require.NoError(t, h.handleDownload(context.Background(), env, payload))
	require.NoError(t, h.handleDownload(context.Background(), env.NextAttempt(), payload))

	assert.Equal(t, 2, hits)
	assert.Len(t, objects.objects, 1, "deterministic path makes the replay overwrite")
}

// Guard against regressions in how validation treats the payload itself.
func TestMediaDownloadPayloadValidation(t *testing.T) {
	p := &job.MediaDownload{}
	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}
