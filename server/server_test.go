package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event model.MentionEvent, source string) pipeline.Skip {
	args := m.Called(event.SourceID, source)
	return args.Get(0).(pipeline.Skip)
}

type MockRecordReader struct {
	mock.Mock
}

func (m *MockRecordReader) FindByShortID(ctx context.Context, shortID string) (model.Retrieval, error) {
	args := m.Called(shortID)
	return args.Get(0).(model.Retrieval), args.Error(1)
}

func (m *MockRecordReader) Recent(ctx context.Context, limit int) ([]model.DetectionRecord, error) {
	args := m.Called(limit)
	return args.Get(0).([]model.DetectionRecord), args.Error(1)
}

func (m *MockRecordReader) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

func newTestEngine(dispatcher *MockDispatcher, records *MockRecordReader) *gin.Engine {
	return NewEngine(NewHandlers(Config{ConsumerSecret: "consumer-secret", WebhookEnabled: true}, dispatcher, records))
}

func serve(engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

const webhookBatch = `{"tweet_create_events": [
	{"id_str": "501", "text": "@detectbot real?", "user": {"id_str": "1", "screen_name": "bob"},
	 "entities": {"user_mentions": [{"screen_name": "detectbot"}]}},
	{"id_str": "502", "text": "@detectbot again", "user": {"id_str": "1", "screen_name": "bob"},
	 "entities": {"user_mentions": [{"screen_name": "detectbot"}]}},
	{"unexpected": true}
]}`

func TestWebhook(t *testing.T) {
	t.Run("dispatches every well formed event", func(t *testing.T) {
		dispatcher := new(MockDispatcher)
		dispatcher.On("Dispatch", "501", "webhook").Return(pipeline.SkipNone)
		dispatcher.On("Dispatch", "502", "webhook").Return(pipeline.SkipDuplicate)
		engine := newTestEngine(dispatcher, new(MockRecordReader))

		w := serve(engine, http.MethodPost, "/webhook", webhookBatch)
		require.Equal(t, http.StatusOK, w.Code)

		var resp webhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, webhookResponse{Received: 3, Dispatched: 1}, resp)
		dispatcher.AssertNumberOfCalls(t, "Dispatch", 2)
	})

	t.Run("acknowledges batches it cannot read", func(t *testing.T) {
		dispatcher := new(MockDispatcher)
		engine := newTestEngine(dispatcher, new(MockRecordReader))

		for _, body := range []string{"", "not json", `{"events": "nope"}`} {
			w := serve(engine, http.MethodPost, "/webhook", body)
			assert.Equal(t, http.StatusOK, w.Code, body)
		}
		dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("acknowledges the batch even when dispatch panics", func(t *testing.T) {
		dispatcher := new(MockDispatcher)
		dispatcher.On("Dispatch", "501", "webhook").Run(func(mock.Arguments) { panic("boom") }).Return(pipeline.SkipNone)
		engine := newTestEngine(dispatcher, new(MockRecordReader))

		w := serve(engine, http.MethodPost, "/webhook", webhookBatch)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("is not mounted when disabled", func(t *testing.T) {
		engine := NewEngine(NewHandlers(Config{}, new(MockDispatcher), new(MockRecordReader)))
		w := serve(engine, http.MethodPost, "/webhook", webhookBatch)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCRCChallenge(t *testing.T) {
	engine := newTestEngine(new(MockDispatcher), new(MockRecordReader))

	w := serve(engine, http.MethodGet, "/webhook?crc_token=challenge", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp crcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CRCResponseToken("consumer-secret", "challenge"), resp.ResponseToken)
	assert.True(t, strings.HasPrefix(resp.ResponseToken, "sha256="))
	assert.NotEqual(t, CRCResponseToken("other-secret", "challenge"), resp.ResponseToken)

	w = serve(engine, http.MethodGet, "/webhook", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordByShortID(t *testing.T) {
	probability := 85.0
	shortID := "Ab3x"
	active := &model.DetectionRecord{
		ID:             "rec-1",
		Platform:       model.PlatformX,
		SourceID:       "501",
		AIProbability:  &probability,
		Classification: "ai_generated",
		ShortID:        &shortID,
		ImageBytes:     []byte("secret bytes"),
	}

	records := new(MockRecordReader)
	records.On("FindByShortID", "Ab3x").Return(model.Retrieval{Status: model.RetrievalActive, Record: active}, nil)
	records.On("FindByShortID", "Gone").Return(model.Retrieval{Status: model.RetrievalGone}, nil)
	records.On("FindByShortID", "Nope").Return(model.Retrieval{Status: model.RetrievalNotFound}, nil)
	records.On("FindByShortID", "Errs").Return(model.Retrieval{}, errors.New("db down"))
	records.On("FindByShortID", "Boom").Run(func(mock.Arguments) { panic("boom") }).Return(model.Retrieval{}, nil)
	engine := newTestEngine(new(MockDispatcher), records)

	w := serve(engine, http.MethodGet, "/api/records/Ab3x", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp recordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ab3x", resp.ShortID)
	assert.Equal(t, 85.0, *resp.AIProbability)
	assert.NotContains(t, w.Body.String(), "imageBytes")

	assert.Equal(t, http.StatusGone, serve(engine, http.MethodGet, "/api/records/Gone", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/records/Nope", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/api/records/Errs", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/api/records/Boom", "").Code)
}

func TestRecentRecords(t *testing.T) {
	records := new(MockRecordReader)
	records.On("Recent", defaultRecentLimit).Return([]model.DetectionRecord{{ID: "a"}, {ID: "b"}}, nil)
	records.On("Recent", maxRecentLimit).Return([]model.DetectionRecord{}, nil)
	engine := newTestEngine(new(MockDispatcher), records)

	w := serve(engine, http.MethodGet, "/api/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Records []recordResponse `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "a", resp.Records[0].ID)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/records?limit=5000", "").Code)
	records.AssertCalled(t, "Recent", maxRecentLimit)

	assert.Equal(t, http.StatusBadRequest, serve(engine, http.MethodGet, "/api/records?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(engine, http.MethodGet, "/api/records?limit=abc", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	records := new(MockRecordReader)
	records.On("Ping").Return(errors.New("db down"))
	engine := newTestEngine(new(MockDispatcher), records)

	w := serve(engine, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "error", health.Database)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = serve(engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
