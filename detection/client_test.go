package detection

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/media/") {
			assert.Equal(t, "secret-key", r.Header.Get("X-API-KEY"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload-slots":
			var req AcquireSlotRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "cat.jpg", req.Filename)
			json.NewEncoder(w).Encode(AcquireSlotResponse{UploadURL: server.URL + "/blob/obj-1", ObjectKey: "obj-1"})
		case r.Method == http.MethodPut && r.URL.Path == "/blob/obj-1":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "jpegbytes", string(body))
			assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			var req SubmitRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "obj-1", req.ObjectKey)
			json.NewEncoder(w).Encode(SubmitResponse{JobID: "job-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1":
			w.Write([]byte(`{"status":"done","score":91.2,"result":{"finalResult":"ai_generated","confidence":0.97}}`))
		case r.URL.Path == "/media/cat.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpegbytes"))
		case r.URL.Path == "/media/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte(`{"error":"nope"}`))
		}
	}))
	return server
}

func TestClient(t *testing.T) {
	server := newTestProvider(t)
	defer server.Close()
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	client := NewClient("secret-key", *baseURL)
	ctx := context.Background()

	slot, err := client.AcquireSlot(ctx, "cat.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "obj-1", slot.ObjectKey)

	require.NoError(t, client.Upload(ctx, slot.UploadURL, []byte("jpegbytes"), "image/jpeg"))

	submitted, err := client.Submit(ctx, slot.ObjectKey, "cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, "job-1", submitted.JobID)

	status, err := client.JobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, status.Status)
	assert.Equal(t, 91.2, *status.Score)
	assert.Equal(t, "ai_generated", status.Result.FinalResult)

	_, err = client.JobStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	err = client.Upload(ctx, server.URL+"/elsewhere", []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestEndToEndAgainstProvider(t *testing.T) {
	server := newTestProvider(t)
	defer server.Close()
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	runner := NewRunner(
		NewClient("secret-key", *baseURL),
		NewHTTPDownloader(time.Second, "detectbot-test"),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	outcome := runner.Detect(context.Background(), server.URL+"/media/cat.jpg")
	require.True(t, outcome.Succeeded(), "failure: %v", outcome.Failure)
	assert.Equal(t, 91.2, outcome.Result.AIProbability)
	assert.Equal(t, "ai_generated", outcome.Result.FinalResult)

	outcome = runner.Detect(context.Background(), server.URL+"/media/page")
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, StageDownloaded, outcome.Failure.Stage)
}
