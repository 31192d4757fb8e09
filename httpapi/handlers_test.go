package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/aimux/perfmon"
	"github.com/martinemde/aimux/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type chatClient struct {
	reply string
	err   error
}

func (c *chatClient) Chat(_ context.Context, req router.ChatRequest) (string, error) {
	return c.reply, c.err
}

type fullClient struct {
	chatClient
	vec   []float64
	audio []byte
	heard []byte
}

func (c *fullClient) Embedding(context.Context, router.EmbeddingRequest) ([]float64, error) {
	return c.vec, nil
}

func (c *fullClient) Vision(_ context.Context, req router.VisionRequest) (string, error) {
	return "saw " + req.Image, nil
}

func (c *fullClient) Transcribe(_ context.Context, req router.TranscriptionRequest) (string, error) {
	c.heard = req.Audio
	return "transcript of " + req.FileName, nil
}

func (c *fullClient) Speech(context.Context, router.SpeechRequest) ([]byte, error) {
	return c.audio, nil
}

type fixture struct {
	engine  *gin.Engine
	monitor *perfmon.Monitor
	openai  *fullClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mon, err := perfmon.New()
	require.NoError(t, err)

	openai := &fullClient{
		chatClient: chatClient{reply: "hello"},
		vec:        []float64{0.1, 0.2},
		audio:      []byte("ID3"),
	}
	d := router.NewDispatcher(nil, nil,
		router.WithClient(router.OpenAI, openai),
		router.WithClient(router.DeepSeek, &chatClient{err: errors.New("upstream 500")}),
		router.WithTracker(mon),
	)
	return &fixture{
		engine:  NewRouter(NewService(d, mon, nil)),
		monitor: mon,
		openai:  openai,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "missing error object: %s", w.Body.String())
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/chat", `{"prompt":"hi","model":"gpt-4o","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"model":"gpt-4o","content":"hello"}`, w.Body.String())

	m := f.monitor.Metrics()
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessfulRequests)
}

func TestChatBadRequest(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"model":"gpt-4o"}`, `{"prompt":"hi"}`, `not json`} {
		w := f.do(t, http.MethodPost, "/v1/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, errorOf(t, w)["message"], "invalid request", body)
	}
	assert.Equal(t, int64(0), f.monitor.Metrics().TotalRequests)
}

func TestDispatchErrorStatus(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		kind    router.ErrorKind
		service string
	}{
		{
			name:    "unknown model",
			path:    "/v1/chat",
			body:    `{"prompt":"hi","model":"no-such-model"}`,
			status:  http.StatusNotFound,
			kind:    router.ModelNotSupported,
			service: router.GlobalService,
		},
		{
			name:    "unconfigured service",
			path:    "/v1/chat",
			body:    `{"prompt":"hi","model":"claude-3-opus-20240229"}`,
			status:  http.StatusServiceUnavailable,
			kind:    router.ServiceUnavailable,
			service: "claude",
		},
		{
			name:    "missing capability",
			path:    "/v1/embeddings",
			body:    `{"text":"hi","model":"deepseek-chat"}`,
			status:  http.StatusBadRequest,
			kind:    router.CapabilityUnsupported,
			service: "deepseek",
		},
		{
			name:    "backend failure",
			path:    "/v1/chat",
			body:    `{"prompt":"hi","model":"deepseek-chat"}`,
			status:  http.StatusBadGateway,
			kind:    router.UnexpectedFailure,
			service: "deepseek",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			e := errorOf(t, w)
			assert.Equal(t, string(tt.kind), e["kind"])
			assert.Equal(t, tt.service, e["service"])
			assert.NotEmpty(t, e["message"])
		})
	}
}

func TestEmbeddingAndVision(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/embeddings", `{"text":"hi","model":"text-embedding-3-small"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"model":"text-embedding-3-small","embedding":[0.1,0.2]}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/v1/vision", `{"prompt":"what","image":"aGk=","model":"gpt-4-vision-preview"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "saw aGk=", decode(t, w)["content"])
}

func TestSpeech(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/audio/speech", `{"text":"hi","model":"tts-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte("ID3"), w.Body.Bytes())
}

func TestTranscription(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("model", "whisper-1"))
	part, err := mw.CreateFormFile("file", "clip.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/audio/transcriptions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "transcript of clip.mp3", decode(t, w)["text"])
	assert.Equal(t, []byte("audio-bytes"), f.openai.heard)
}

func TestTranscriptionRequiresFile(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/audio/transcriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModels(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Backends []backendInfo `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Backends, len(router.Backends))

	byName := make(map[router.Backend]backendInfo)
	for _, b := range body.Backends {
		byName[b.Backend] = b
	}
	assert.True(t, byName[router.OpenAI].Available)
	assert.Contains(t, byName[router.OpenAI].Models, "gpt-4o")
	assert.Len(t, byName[router.OpenAI].Capabilities, 5)
	assert.Equal(t, []router.Capability{router.CapabilityChat}, byName[router.DeepSeek].Capabilities)
	assert.False(t, byName[router.Claude].Available)
	assert.Empty(t, byName[router.Claude].Capabilities)
	assert.Contains(t, byName[router.Claude].Models, "claude-3-opus-20240229")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/chat", `{"prompt":"hi","model":"gpt-4o"}`)
	f.do(t, http.MethodPost, "/v1/chat", `{"prompt":"hi","model":"deepseek-chat"}`)

	w := f.do(t, http.MethodGet, "/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var s perfmon.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, int64(2), s.Overview.TotalRequests)
	assert.Equal(t, int64(1), s.Overview.FailedRequests)
	assert.Equal(t, 50.0, s.Overview.SuccessRate)
	assert.Len(t, s.Services, 2)
}

func TestRecovery(t *testing.T) {
	f := newFixture(t)
	f.engine.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := f.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", errorOf(t, w)["message"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SomethingElse"))
}
