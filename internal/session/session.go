// Package session owns one chat conversation: the transcript, the loading
// flag and the request token that decides which asynchronous result may
// still change them.
package session

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sigma-chat/internal/response"
	"sigma-chat/internal/transcript"
)

const WelcomeID = "welcome"

const (
	DefaultWelcome      = "Chào bạn! Tôi là trợ lý Sigma. Bạn cần hỗ trợ gì hoặc có thể chọn một trong các chủ đề dưới đây nhé."
	DefaultErrorMessage = "Xin lỗi, đã có lỗi xảy ra. Bạn vui lòng thử lại sau nhé."
)

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAwaitingFirstChunk Phase = "awaiting_first_chunk"
	PhaseStreaming          Phase = "streaming"
)

// Labels are the locale dependent texts the session itself writes.
type Labels struct {
	Welcome      string   `yaml:"welcome" json:"welcome"`
	ErrorMessage string   `yaml:"error_message" json:"error_message"`
	QuickReplies []string `yaml:"quick_replies" json:"quick_replies"`
}

type Options struct {
	Labels
	Locale  string
	Locales map[string]Labels
	// Params are forwarded to the collaborator with every request.
	Params map[string]string
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

// View is the read-only state the rendering boundary draws from.
type View struct {
	ThreadID    string               `json:"thread_id"`
	Messages    []transcript.Message `json:"messages"`
	Loading     bool                 `json:"loading"`
	Phase       Phase                `json:"phase"`
	Token       uint64               `json:"token"`
	Locale      string               `json:"locale"`
	Suggestions []string             `json:"suggestions,omitempty"`
}

// Session is not safe for concurrent use. Exactly one logical thread (a
// bubbletea Update loop, or Controller) calls Submit, Apply and Reset.
type Session struct {
	collab     response.Collaborator
	transcript *transcript.Store
	opts       Options
	log        *zap.Logger

	threadID string
	locale   string
	loading  bool
	token    uint64
	active   bool
	streamID string
}

func New(collab response.Collaborator, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Welcome == "" {
		opts.Welcome = DefaultWelcome
	}
	if opts.ErrorMessage == "" {
		opts.ErrorMessage = DefaultErrorMessage
	}

	s := &Session{
		collab:   collab,
		opts:     opts,
		log:      opts.Logger,
		locale:   opts.Locale,
		threadID: opts.NewID(),
	}
	s.transcript = transcript.NewStore(s.welcome())
	return s
}

// Submit opens a new request for text. Blank text is ignored. Any earlier
// request becomes stale the moment the new token is minted.
func (s *Session) Submit(text string) (*Exchange, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	s.closeStream()
	history := s.transcript.Messages()

	if err := s.transcript.Append(transcript.Message{
		ID:        s.opts.NewID(),
		Sender:    transcript.SenderUser,
		Kind:      transcript.KindPlain,
		Content:   text,
		CreatedAt: s.opts.Now(),
		Final:     true,
	}); err != nil {
		s.log.Error("append user message", zap.Error(err))
		return nil, false
	}

	s.token++
	s.loading = true
	s.active = true

	s.log.Info("submit",
		zap.Uint64("token", s.token),
		zap.String("thread_id", s.threadID),
		zap.Int("history", len(history)),
	)

	return &Exchange{
		Token: s.token,
		Input: response.Input{
			Text:     text,
			ThreadID: s.threadID,
			Locale:   s.locale,
			History:  history,
			Params:   maps.Clone(s.opts.Params),
		},
		collab: s.collab,
		log:    s.log,
	}, true
}

// Apply folds one exchange event into the session. applied is false for
// stale events, which change nothing.
func (s *Session) Apply(ev Event) (d Directive, applied bool) {
	if ev.Token != s.token || !s.active {
		s.log.Debug("stale event dropped",
			zap.Uint64("event_token", ev.Token),
			zap.Uint64("token", s.token),
			zap.String("kind", string(ev.Kind)),
		)
		return Stop, false
	}

	switch ev.Kind {
	case EventResolved:
		s.settle()
		s.appendAgent(ev.Text, ev.Attachments)
		return Stop, true

	case EventFragment:
		if s.streamID == "" {
			s.loading = false
			id := s.opts.NewID()
			if err := s.transcript.Append(transcript.Message{
				ID:        id,
				Sender:    transcript.SenderAgent,
				Kind:      transcript.KindPlain,
				CreatedAt: s.opts.Now(),
			}); err != nil {
				s.log.Error("open streamed message", zap.Error(err))
				s.settle()
				return Stop, true
			}
			s.streamID = id
		}
		if err := s.transcript.AppendContent(s.streamID, ev.Text); err != nil {
			s.log.Error("append fragment", zap.String("message_id", s.streamID), zap.Error(err))
			s.settle()
			return Stop, true
		}
		return Continue, true

	case EventExhausted:
		if s.streamID == "" {
			s.log.Debug("stream ended without fragments", zap.Uint64("token", s.token))
		}
		s.settle()
		return Stop, true

	case EventFailed:
		s.settle()
		s.appendAgent(s.labels().ErrorMessage, nil)
		return Stop, true

	default:
		s.log.Warn("unknown event kind", zap.String("kind", string(ev.Kind)))
		return Stop, false
	}
}

// Reset invalidates the in-flight request and starts a new thread with a
// fresh welcome message. The collaborator's own work keeps running; its
// results are simply never applied.
func (s *Session) Reset() {
	s.token++
	s.loading = false
	s.active = false
	s.streamID = ""
	s.threadID = s.opts.NewID()
	s.transcript.Replace(s.welcome())
	s.log.Info("reset", zap.Uint64("token", s.token), zap.String("thread_id", s.threadID))
}

// SetLocale changes the locale sent to the collaborator. An untouched
// transcript gets its welcome message re-localized.
func (s *Session) SetLocale(locale string) {
	s.locale = locale
	if s.pristine() && !s.active {
		s.transcript.Replace(s.welcome())
	}
}

func (s *Session) View() View {
	v := View{
		ThreadID: s.threadID,
		Messages: s.transcript.Messages(),
		Loading:  s.loading,
		Phase:    s.Phase(),
		Token:    s.token,
		Locale:   s.locale,
	}
	if s.pristine() {
		v.Suggestions = append([]string(nil), s.labels().QuickReplies...)
	}
	return v
}

func (s *Session) Phase() Phase {
	switch {
	case !s.active:
		return PhaseIdle
	case s.streamID != "":
		return PhaseStreaming
	default:
		return PhaseAwaitingFirstChunk
	}
}

func (s *Session) Loading() bool { return s.loading }

func (s *Session) Token() uint64 { return s.token }

func (s *Session) ThreadID() string { return s.threadID }

func (s *Session) Transcript() *transcript.Store { return s.transcript }

func (s *Session) settle() {
	s.loading = false
	s.active = false
	s.closeStream()
}

func (s *Session) closeStream() {
	if s.streamID == "" {
		return
	}
	if err := s.transcript.Finalize(s.streamID); err != nil {
		s.log.Warn("finalize streamed message", zap.String("message_id", s.streamID), zap.Error(err))
	}
	s.streamID = ""
}

func (s *Session) appendAgent(text string, attachments []transcript.Attachment) {
	err := s.transcript.Append(transcript.Message{
		ID:          s.opts.NewID(),
		Sender:      transcript.SenderAgent,
		Content:     text,
		Attachments: attachments,
		CreatedAt:   s.opts.Now(),
		Final:       true,
	})
	if err != nil {
		s.log.Error("append agent message", zap.Error(err))
	}
}

func (s *Session) welcome() transcript.Message {
	return transcript.Message{
		ID:        WelcomeID,
		Sender:    transcript.SenderAgent,
		Kind:      transcript.KindPlain,
		Content:   s.labels().Welcome,
		CreatedAt: s.opts.Now(),
		Final:     true,
	}
}

func (s *Session) pristine() bool {
	if s.transcript.Len() != 1 {
		return false
	}
	m, ok := s.transcript.Last()
	return ok && m.ID == WelcomeID
}

func (s *Session) labels() Labels {
	l := s.opts.Labels
	if loc, ok := s.opts.Locales[s.locale]; ok {
		if loc.Welcome != "" {
			l.Welcome = loc.Welcome
		}
		if loc.ErrorMessage != "" {
			l.ErrorMessage = loc.ErrorMessage
		}
		if len(loc.QuickReplies) > 0 {
			l.QuickReplies = loc.QuickReplies
		}
	}
	return l
}
