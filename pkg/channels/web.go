package channels

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/hagglekit/hagglekit/pkg/assistant"
	"github.com/hagglekit/hagglekit/pkg/bus"
	"github.com/hagglekit/hagglekit/pkg/chat"
	"github.com/hagglekit/hagglekit/pkg/config"
	"github.com/hagglekit/hagglekit/pkg/errdefs"
	"github.com/hagglekit/hagglekit/pkg/export"
	"github.com/hagglekit/hagglekit/pkg/logger"
	"github.com/hagglekit/hagglekit/pkg/negotiation"
	"github.com/hagglekit/hagglekit/pkg/voice"
)

// WebChannel serves the browser surface: the chat page, the send and
// history endpoints, the screenshot analyze endpoint, and a websocket
// feed of appended messages and notices.
type WebChannel struct {
	config   config.WebConfig
	asst     *assistant.Assistant
	msgBus   *bus.MessageBus
	hub      *Hub
	server   *http.Server
	sessions map[string]time.Time     // token -> expiry
	limiters map[string]*rate.Limiter // client IP -> analyze limiter
	mu       sync.RWMutex

	// newTranscriber builds a transcriber per voice request. The default
	// is the fixed-phrase stub; hosts without speech support swap in the
	// Unsupported variant.
	newTranscriber func() voice.Transcriber

	// synth speaks assistant text aloud; copyText places it on the host
	// clipboard. Both fail soft with a notice instead of an error page.
	synth    voice.Synthesizer
	copyText func(string) error
}

type sendRequest struct {
	SessionID string               `json:"session_id"`
	Message   string               `json:"message"`
	Context   *negotiation.Context `json:"context,omitempty"`
}

type sendResponse struct {
	SessionID string       `json:"session_id"`
	Message   chat.Message `json:"message"`
}

func NewWebChannel(cfg config.WebConfig, asst *assistant.Assistant, msgBus *bus.MessageBus) *WebChannel {
	return &WebChannel{
		config:   cfg,
		asst:     asst,
		msgBus:   msgBus,
		hub:      NewHub(),
		sessions: make(map[string]time.Time),
		limiters: make(map[string]*rate.Limiter),
		newTranscriber: func() voice.Transcriber {
			return voice.NewStubTranscriber()
		},
		synth:    voice.UnsupportedSynthesizer{},
		copyText: export.CopyText,
	}
}

// Notify implements assistant.NoticeFunc: out-of-band errors reach the
// browser as websocket notices, never as chat entries.
func (c *WebChannel) Notify(sessionID, message string) {
	c.hub.Broadcast(Event{Type: "notice", SessionID: sessionID, Payload: message})
}

// authEnabled returns true when both username and password are configured.
func (c *WebChannel) authEnabled() bool {
	return c.config.Username != "" && c.config.Password != ""
}

// createSession generates a random session token and stores it.
func (c *WebChannel) createSession() string {
	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)
	c.mu.Lock()
	c.sessions[token] = time.Now().Add(24 * time.Hour)
	c.mu.Unlock()
	return token
}

// validSession checks if the request carries a valid session cookie.
func (c *WebChannel) validSession(r *http.Request) bool {
	cookie, err := r.Cookie("hagglekit_session")
	if err != nil {
		return false
	}
	c.mu.RLock()
	expiry, ok := c.sessions[cookie.Value]
	c.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// requireAuth wraps a handler with authentication. If auth is not configured, it passes through.
func (c *WebChannel) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.authEnabled() {
			next(w, r)
			return
		}
		if c.validSession(r) {
			next(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// requireAuthAPI is like requireAuth but returns 401 JSON for API endpoints.
func (c *WebChannel) requireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.authEnabled() {
			next(w, r)
			return
		}
		if c.validSession(r) {
			next(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
	}
}

func (c *WebChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", c.requireAuth(c.handleUI))
	mux.HandleFunc("/login", c.handleLogin)
	mux.HandleFunc("/logout", c.handleLogout)
	mux.HandleFunc("/chat/send", c.requireAuthAPI(c.handleSend))
	mux.HandleFunc("/chat/history", c.requireAuthAPI(c.handleHistory))
	mux.HandleFunc("/chat/context", c.requireAuthAPI(c.handleContext))
	mux.HandleFunc("/chat/analysis", c.requireAuthAPI(c.handleAnalysis))
	mux.HandleFunc("/chat/voice", c.requireAuthAPI(c.handleVoice))
	mux.HandleFunc("/chat/speak", c.requireAuthAPI(c.handleSpeak))
	mux.HandleFunc("/chat/copy", c.requireAuthAPI(c.handleCopy))
	mux.HandleFunc("/analyze", c.requireAuthAPI(c.handleAnalyze))
	mux.HandleFunc("/ws", c.requireAuthAPI(c.handleWs))
	mux.HandleFunc("/healthz", c.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	c.server = &http.Server{Addr: addr, Handler: mux}

	if c.authEnabled() {
		logger.InfoCF("channels", "Web channel started (auth enabled)", map[string]interface{}{"addr": addr})
	} else {
		logger.InfoCF("channels", "Web channel started (no auth)", map[string]interface{}{"addr": addr})
	}

	go c.hub.Run()
	go c.pumpOutbound(ctx)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("channels", "Web channel server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return nil
}

func (c *WebChannel) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// pumpOutbound relays assistant replies from the bus to websocket
// subscribers. HTTP callers already got the reply synchronously.
func (c *WebChannel) pumpOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-c.msgBus.Outbound():
			c.hub.Broadcast(Event{Type: "message", SessionID: out.SessionID, Payload: out.Content})
		}
	}
}

func (c *WebChannel) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !c.authEnabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if c.validSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loginHTML)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "bad request")
			return
		}
	} else {
		r.ParseForm()
		body.Username = r.FormValue("username")
		body.Password = r.FormValue("password")
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(body.Username), []byte(c.config.Username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(body.Password), []byte(c.config.Password)) == 1

	if !usernameMatch || !passwordMatch {
		logger.WarnCF("channels", "Web login failed", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		if contentType == "application/json" {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loginErrorHTML)
		return
	}

	token := c.createSession()
	http.SetCookie(w, &http.Cookie{
		Name:     "hagglekit_session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})

	if contentType == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *WebChannel) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("hagglekit_session"); err == nil {
		c.mu.Lock()
		delete(c.sessions, cookie.Value)
		c.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "hagglekit_session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (c *WebChannel) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Context != nil {
		c.asst.Session(req.SessionID, *req.Context, true)
	}

	msg, err := c.asst.Send(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeAssistantError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sendResponse{SessionID: req.SessionID, Message: msg})
}

func (c *WebChannel) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	s := c.asst.Session(sessionID, negotiation.Context{}, false)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": sessionID,
		"messages":   s.Log.Messages(),
		"groups":     s.Log.GroupedByAuthor(),
	})
}

// handleContext replaces the deal context of a session.
func (c *WebChannel) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string              `json:"session_id"`
		Context   negotiation.Context `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	c.asst.Session(req.SessionID, req.Context, true)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (c *WebChannel) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	s := c.asst.Session(sessionID, negotiation.Context{}, false)
	res := s.LastAnalysis()
	if res == nil {
		writeJSONError(w, http.StatusNotFound, "no analysis for this session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (c *WebChannel) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !c.limiterFor(clientIP(r)).Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "too many analyze requests, slow down")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad multipart form")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	res, err := c.asst.Analyze(r.Context(), sessionID, header.Filename, data)
	if err != nil {
		writeAssistantError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// handleVoice captures speech, transcribes it, and runs the transcript
// through the normal send path with the voice flag set.
func (c *WebChannel) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	tr := c.newTranscriber()
	if !tr.Supported() {
		writeJSONError(w, http.StatusNotImplemented, voice.ErrUnsupported.Error())
		return
	}
	if err := tr.Start(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	transcript, err := tr.Stop(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg, err := c.asst.SendVoice(r.Context(), req.SessionID, transcript)
	if err != nil {
		writeAssistantError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": req.SessionID,
		"transcript": transcript,
		"message":    msg,
	})
}

type exportRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// resolveExportText finds the text to speak or copy: the message with the
// given id, or the latest assistant message when no id is sent.
func (c *WebChannel) resolveExportText(req *exportRequest) (string, bool) {
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	s := c.asst.Session(req.SessionID, negotiation.Context{}, false)
	msgs := s.Log.Messages()

	if req.MessageID != "" {
		for _, m := range msgs {
			if m.ID == req.MessageID {
				return m.Text, true
			}
		}
		return "", false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Author == chat.AuthorAssistant {
			return msgs[i].Text, true
		}
	}
	return "", false
}

// handleSpeak reads an assistant message aloud through the configured
// synthesizer. Hosts without text-to-speech get a notice and a 501.
func (c *WebChannel) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}

	text, ok := c.resolveExportText(&req)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no message to speak")
		return
	}

	if err := c.synth.Speak(r.Context(), text); err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			c.Notify(req.SessionID, "Speech is not available in this environment.")
			writeJSONError(w, http.StatusNotImplemented, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCopy places an assistant message on the server host's clipboard.
func (c *WebChannel) handleCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}

	text, ok := c.resolveExportText(&req)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no message to copy")
		return
	}

	if err := c.copyText(text); err != nil {
		c.Notify(req.SessionID, err.Error())
		writeJSONError(w, http.StatusNotImplemented, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (c *WebChannel) handleWs(w http.ResponseWriter, r *http.Request) {
	ServeWs(c.hub, w, r)
}

func (c *WebChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (c *WebChannel) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, chatHTML)
}

// limiterFor returns the analyze limiter for a client IP, creating it on
// first use. Zero or negative configuration disables limiting.
func (c *WebChannel) limiterFor(ip string) *rate.Limiter {
	perMinute := c.config.AnalyzePerMinute
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		c.limiters[ip] = l
	}
	return l
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeAssistantError maps assistant errors onto HTTP statuses:
// validation failures are the caller's fault, upstream failures are a
// bad gateway, parse failures already degraded so anything left is 502.
func writeAssistantError(w http.ResponseWriter, err error) {
	switch {
	case errdefs.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errdefs.IsTransport(err), errdefs.IsParse(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
