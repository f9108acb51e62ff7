package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagglekit/hagglekit/pkg/assistant"
	"github.com/hagglekit/hagglekit/pkg/bus"
	"github.com/hagglekit/hagglekit/pkg/config"
	"github.com/hagglekit/hagglekit/pkg/errdefs"
	"github.com/hagglekit/hagglekit/pkg/logger"
	"github.com/hagglekit/hagglekit/pkg/negotiation"
	"github.com/hagglekit/hagglekit/pkg/providers"
	"github.com/hagglekit/hagglekit/pkg/voice"
)

func TestMain(m *testing.M) {
	logger.Init("error", false)
	os.Exit(m.Run())
}

type echoProvider struct {
	err error
}

func (p *echoProvider) Chat(ctx context.Context, messages []providers.Message, model string, options map[string]interface{}) (*providers.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	last := messages[len(messages)-1]
	return &providers.Response{Content: "echo: " + last.Content, Model: model}, nil
}

func (p *echoProvider) GetDefaultModel() string { return "echo" }

func newTestChannel(t *testing.T, provider providers.ChatProvider, webCfg config.WebConfig) *WebChannel {
	t.Helper()
	cfg := config.DefaultConfig()
	msgBus := bus.NewMessageBus()
	asst := assistant.New(cfg, provider, nil, nil, msgBus, nil)
	return NewWebChannel(webCfg, asst, msgBus)
}

func postJSON(handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleSendEchoesReply(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	rec := postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello seller"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sendResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "echo: hello seller", resp.Message.Text)
}

func TestHandleSendEmptyMessageIsBadRequest(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	rec := postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSendUpstreamFailureIsBadGateway(t *testing.T) {
	c := newTestChannel(t, &echoProvider{err: errdefs.Transport("openai", errors.New("503"))}, config.WebConfig{})

	rec := postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHistoryReturnsLogAndGroups(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "one"})

	req := httptest.NewRequest(http.MethodGet, "/chat/history?session_id=s1", nil)
	rec := httptest.NewRecorder()
	c.handleHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string            `json:"session_id"`
		Messages  []json.RawMessage `json:"messages"`
		Groups    []json.RawMessage `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Messages, 2)
	assert.Len(t, resp.Groups, 2)
}

func TestHandleAnalyzeRejectsNonImage(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte("definitely text"))
	w.WriteField("session_id", "s1")
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	c.handleAnalyze(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not an image")
}

func TestHandleAnalyzeRateLimited(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{AnalyzePerMinute: 1})

	makeReq := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, _ := w.CreateFormFile("file", "notes.txt")
		part.Write([]byte("text"))
		w.Close()
		req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		c.handleAnalyze(rec, req)
		return rec
	}

	first := makeReq()
	assert.Equal(t, http.StatusBadRequest, first.Code) // consumed the slot, failed validation

	second := makeReq()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestLoginFlow(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{Username: "buyer", Password: "hunter2"})

	// Wrong credentials over JSON get a 401.
	rec := postJSON(c.handleLogin, "/login", map[string]string{"username": "buyer", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials set the session cookie.
	rec = postJSON(c.handleLogin, "/login", map[string]string{"username": "buyer", "password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "hagglekit_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	// The cookie authenticates API calls.
	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	c.requireAuthAPI(c.handleHistory)(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRequireAuthAPIRejectsAnonymous(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{Username: "buyer", Password: "hunter2"})

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	rec := httptest.NewRecorder()
	c.requireAuthAPI(c.handleHistory)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestRequireAuthAPIPassesThroughWhenUnconfigured(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	rec := httptest.NewRecorder()
	c.requireAuthAPI(c.handleHistory)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleVoiceTranscribesAndSends(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	c.newTranscriber = func() voice.Transcriber {
		tr := voice.NewStubTranscriber()
		tr.Delay = 0
		return tr
	}

	rec := postJSON(c.handleVoice, "/chat/voice", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transcript string `json:"transcript"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Transcript)

	log := c.asst.Session("s1", negotiation.Context{}, false).Log.Messages()
	require.Len(t, log, 2)
	assert.True(t, log[0].IsVoice)
}

func TestHandleVoiceUnsupportedHost(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	c.newTranscriber = func() voice.Transcriber { return voice.UnsupportedTranscriber{} }

	rec := postJSON(c.handleVoice, "/chat/voice", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type recordingSynth struct {
	spoken []string
	err    error
}

func (s *recordingSynth) Speak(ctx context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSynth) Supported() bool { return s.err == nil }

func TestHandleSpeakLatestAssistantMessage(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	synth := &recordingSynth{}
	c.synth = synth

	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello"})

	rec := postJSON(c.handleSpeak, "/chat/speak", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, synth.spoken, 1)
	assert.Equal(t, "echo: hello", synth.spoken[0])
}

func TestHandleSpeakByMessageID(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	synth := &recordingSynth{}
	c.synth = synth

	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "first"})
	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "second"})

	log := c.asst.Session("s1", negotiation.Context{}, false).Log.Messages()
	rec := postJSON(c.handleSpeak, "/chat/speak", map[string]string{
		"session_id": "s1", "message_id": log[1].ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, synth.spoken, 1)
	assert.Equal(t, "echo: first", synth.spoken[0])
}

func TestHandleSpeakUnsupportedHost(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello"})

	rec := postJSON(c.handleSpeak, "/chat/speak", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleSpeakNoMessages(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	c.synth = &recordingSynth{}

	rec := postJSON(c.handleSpeak, "/chat/speak", map[string]string{"session_id": "empty"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCopyLatestAssistantMessage(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	var copied string
	c.copyText = func(text string) error {
		copied = text
		return nil
	}

	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello"})

	rec := postJSON(c.handleCopy, "/chat/copy", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hello", copied)
}

func TestHandleCopyFailureIsNotImplemented(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})
	c.copyText = func(string) error {
		return errors.New("clipboard is not available in this environment, copy the text manually")
	}

	postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "hello"})

	rec := postJSON(c.handleCopy, "/chat/copy", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "clipboard")
}

func TestHandleContextReplacesDeal(t *testing.T) {
	c := newTestChannel(t, &echoProvider{}, config.WebConfig{})

	body := `{"session_id": "s1", "context": {"item_title": "road bike", "original_price": "300"}}`
	req := httptest.NewRequest(http.MethodPost, "/chat/context", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.handleContext(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(c.handleSend, "/chat/send", sendRequest{SessionID: "s1", Message: "open"})
	require.Equal(t, http.StatusOK, rec.Code)
}
