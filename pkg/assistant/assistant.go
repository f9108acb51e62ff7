// Package assistant runs the conversation loop: optimistic user append,
// one delegated provider call, at most one assistant append. Failures
// leave the user entry in place and surface a single out-of-band notice.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hagglekit/hagglekit/pkg/analysis"
	"github.com/hagglekit/hagglekit/pkg/bus"
	"github.com/hagglekit/hagglekit/pkg/chat"
	"github.com/hagglekit/hagglekit/pkg/config"
	"github.com/hagglekit/hagglekit/pkg/errdefs"
	"github.com/hagglekit/hagglekit/pkg/logger"
	"github.com/hagglekit/hagglekit/pkg/metrics"
	"github.com/hagglekit/hagglekit/pkg/negotiation"
	"github.com/hagglekit/hagglekit/pkg/providers"
	"github.com/hagglekit/hagglekit/pkg/upload"
)

// ImageAnalyzer abstracts the screenshot extractor so the loop can be
// tested without a live multimodal service.
type ImageAnalyzer interface {
	Extract(ctx context.Context, imageBytes []byte, mimeType, category string) (*analysis.Result, error)
}

// TranscriptStore persists messages and analyses. Implementations must
// tolerate being called once per append; a nil store disables
// persistence.
type TranscriptStore interface {
	SaveMessage(sessionID string, msg chat.Message) error
	SaveAnalysis(sessionID string, res *analysis.Result) error
	LoadMessages(sessionID string) ([]chat.Message, error)
}

// NoticeFunc receives out-of-band error notifications meant for the
// user (the toast layer). It is never called on success.
type NoticeFunc func(sessionID, message string)

type Assistant struct {
	cfg      *config.Config
	provider providers.ChatProvider
	analyzer ImageAnalyzer
	store    TranscriptStore
	msgBus   *bus.MessageBus
	notify   NoticeFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(cfg *config.Config, provider providers.ChatProvider, analyzer ImageAnalyzer, store TranscriptStore, msgBus *bus.MessageBus, notify NoticeFunc) *Assistant {
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Assistant{
		cfg:      cfg,
		provider: provider,
		analyzer: analyzer,
		store:    store,
		msgBus:   msgBus,
		notify:   notify,
		sessions: make(map[string]*Session),
	}
}

// SetNotify swaps the notice sink. Channels that need the assistant
// constructed first install their notifier through this before the loop
// starts; a nil fn disables notices.
func (a *Assistant) SetNotify(fn NoticeFunc) {
	if fn == nil {
		fn = func(string, string) {}
	}
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

func (a *Assistant) notifyUser(sessionID, message string) {
	a.mu.RLock()
	fn := a.notify
	a.mu.RUnlock()
	fn(sessionID, message)
}

// Session returns the session for id, creating it with the given deal
// context on first use. The deal context of an existing session is not
// replaced unless replaceDeal is set.
func (a *Assistant) Session(id string, deal negotiation.Context, replaceDeal bool) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[id]
	if !ok {
		s = NewSession(id, deal)
		if a.store != nil {
			if msgs, err := a.store.LoadMessages(id); err == nil {
				for _, m := range msgs {
					s.Log.Append(m)
				}
			}
		}
		a.sessions[id] = s
		return s
	}
	if replaceDeal {
		s.Deal = deal
	}
	return s
}

// Send runs one chat turn. The user entry is appended before the
// provider call; on failure it stays, no assistant entry is appended,
// and exactly one notice is raised. Empty input (after trimming) with
// no attachment is a no-op: nothing is appended and nothing goes out.
func (a *Assistant) Send(ctx context.Context, sessionID, text string) (chat.Message, error) {
	return a.send(ctx, sessionID, text, false)
}

// SendVoice is Send for transcribed speech; the user entry is marked as
// voice input but the turn is otherwise identical.
func (a *Assistant) SendVoice(ctx context.Context, sessionID, transcript string) (chat.Message, error) {
	return a.send(ctx, sessionID, transcript, true)
}

func (a *Assistant) send(ctx context.Context, sessionID, text string, isVoice bool) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, errdefs.Validation("nothing to send")
	}

	s := a.Session(sessionID, negotiation.Context{}, false)
	if !s.acquire() {
		return chat.Message{}, errdefs.Validation("a request is already in flight for this session")
	}
	defer s.release()

	history := s.Log.Messages()

	userMsg := chat.NewMessage(chat.AuthorUser, text)
	userMsg.IsVoice = isVoice
	a.append(sessionID, s, userMsg)

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	turns := a.buildTurns(s, history, text)
	start := time.Now()
	resp, err := a.provider.Chat(reqCtx, turns, a.cfg.Assistant.Model, map[string]interface{}{
		"temperature": a.cfg.Assistant.Temperature,
		"max_tokens":  a.cfg.Assistant.MaxTokens,
	})
	metrics.ObserveProviderCall(time.Since(start), err == nil)
	if err != nil {
		logger.ErrorCF("assistant", "Generation failed", map[string]interface{}{
			"session": sessionID, "error": err.Error(),
		})
		a.notifyUser(sessionID, "The assistant could not reply. Please resend your message.")
		return chat.Message{}, err
	}

	assistantMsg := chat.NewMessage(chat.AuthorAssistant, resp.Content)
	a.append(sessionID, s, assistantMsg)
	if a.msgBus != nil {
		a.msgBus.PublishOutbound(bus.OutboundMessage{SessionID: sessionID, Content: resp.Content})
	}
	return assistantMsg, nil
}

// Analyze validates and analyzes a screenshot, stores the result on the
// session, and appends the attachment turn plus the suggested reply.
// Validation failures happen before any network call. A degraded result
// is a success, not an error.
func (a *Assistant) Analyze(ctx context.Context, sessionID, filename string, data []byte) (*analysis.Result, error) {
	info, err := upload.ValidateImage(filename, data, a.cfg.Upload.MaxBytes)
	if err != nil {
		metrics.ObserveUploadRejected()
		a.notifyUser(sessionID, err.Error())
		return nil, err
	}

	s := a.Session(sessionID, negotiation.Context{}, false)
	if !s.acquire() {
		return nil, errdefs.Validation("a request is already in flight for this session")
	}
	defer s.release()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := a.analyzer.Extract(reqCtx, data, info.MIME, s.Deal.Category)
	metrics.ObserveAnalysis(time.Since(start), err == nil, res != nil && res.Degraded)
	if err != nil {
		logger.ErrorCF("assistant", "Analysis failed", map[string]interface{}{
			"session": sessionID, "error": err.Error(),
		})
		a.notifyUser(sessionID, "The screenshot could not be analyzed. Please try again.")
		return nil, err
	}

	s.setAnalysis(res)
	if a.store != nil {
		if err := a.store.SaveAnalysis(sessionID, res); err != nil {
			logger.WarnCF("assistant", "Persisting analysis failed", map[string]interface{}{"error": err.Error()})
		}
	}

	userMsg := chat.NewMessage(chat.AuthorUser, fmt.Sprintf("[screenshot: %s]", info.Name))
	userMsg.HasAttachment = true
	a.append(sessionID, s, userMsg)

	assistantMsg := chat.NewMessage(chat.AuthorAssistant, res.SuggestedResponse)
	a.append(sessionID, s, assistantMsg)
	if a.msgBus != nil {
		a.msgBus.PublishOutbound(bus.OutboundMessage{SessionID: sessionID, Content: res.SuggestedResponse})
	}
	return res, nil
}

func (a *Assistant) append(sessionID string, s *Session, msg chat.Message) {
	s.Log.Append(msg)
	if a.store != nil {
		if err := a.store.SaveMessage(sessionID, msg); err != nil {
			logger.WarnCF("assistant", "Persisting message failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// buildTurns assembles the provider conversation: system turn carrying
// the deal context (and the last analysis when present), then prior
// turns in log order, then the current input.
func (a *Assistant) buildTurns(s *Session, history []chat.Message, text string) []providers.Message {
	system := s.Deal.SystemPrompt()
	if res := s.LastAnalysis(); res != nil {
		system += "\n" + analysisContext(res)
	}

	turns := []providers.Message{{Role: providers.RoleSystem, Content: system}}
	for _, m := range history {
		role := providers.RoleUser
		if m.Author == chat.AuthorAssistant {
			role = providers.RoleAssistant
		}
		turns = append(turns, providers.Message{Role: role, Content: m.Text})
	}
	return append(turns, providers.Message{Role: providers.RoleUser, Content: text})
}

func analysisContext(res *analysis.Result) string {
	var b strings.Builder
	b.WriteString("Latest screenshot analysis of the seller's messages:\n")
	fmt.Fprintf(&b, "- Sentiment: %s\n", res.Sentiment)
	fmt.Fprintf(&b, "- Price flexibility: %s, urgency: %s\n", res.PriceFlexibility, res.Urgency)
	if res.MentionedPrice != "" {
		fmt.Fprintf(&b, "- Mentioned price: %s\n", res.MentionedPrice)
	}
	fmt.Fprintf(&b, "- Seller motivation: %s\n", res.CounterpartMotivation)
	for _, p := range res.KeyPoints {
		fmt.Fprintf(&b, "- Key point: %s\n", p)
	}
	if res.Degraded {
		b.WriteString("- Note: this analysis is a degraded fallback; weigh it lightly\n")
	}
	return b.String()
}

func (a *Assistant) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(a.cfg.Assistant.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Run consumes inbound bus messages until ctx is done. Channel replies
// flow back over the outbound side; errors were already noticed.
func (a *Assistant) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-a.msgBus.Inbound():
			if _, err := a.Send(ctx, in.SessionID, in.Content); err != nil {
				logger.DebugCF("assistant", "Inbound send failed", map[string]interface{}{
					"session": in.SessionID, "error": err.Error(),
				})
			}
		}
	}
}
