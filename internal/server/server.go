// Package server exposes a session over HTTP and pushes every state change to
// websocket clients.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sigma-chat/internal/markup"
	"sigma-chat/internal/session"
	"sigma-chat/internal/transcript"
)

// Message is a transcript message with its markup already parsed. Blocks are
// only filled for agent messages.
type Message struct {
	transcript.Message
	Blocks []markup.Block `json:"blocks,omitempty"`
}

type State struct {
	ThreadID    string        `json:"thread_id"`
	Messages    []Message     `json:"messages"`
	Loading     bool          `json:"loading"`
	Phase       session.Phase `json:"phase"`
	Token       uint64        `json:"token"`
	Locale      string        `json:"locale"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// Frame is the envelope for every websocket message in both directions.
type Frame struct {
	Type   string `json:"type"`
	State  *State `json:"state,omitempty"`
	Text   string `json:"text,omitempty"`
	Locale string `json:"locale,omitempty"`
	Token  uint64 `json:"token,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	FrameState  = "state"
	FrameSubmit = "submit"
	FrameReset  = "reset"
	FrameLocale = "locale"
	FrameAck    = "ack"
	FrameError  = "error"
)

func NewState(v session.View) State {
	msgs := make([]Message, 0, len(v.Messages))
	for _, m := range v.Messages {
		out := Message{Message: m}
		if m.Sender == transcript.SenderAgent {
			out.Blocks = markup.Parse(m.Content)
		}
		msgs = append(msgs, out)
	}
	return State{
		ThreadID:    v.ThreadID,
		Messages:    msgs,
		Loading:     v.Loading,
		Phase:       v.Phase,
		Token:       v.Token,
		Locale:      v.Locale,
		Suggestions: v.Suggestions,
	}
}

type Server struct {
	ctrl        *session.Controller
	hub         *Hub
	log         *zap.Logger
	upgrader    websocket.Upgrader
	unsubscribe func()
}

func New(ctrl *session.Controller, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		ctrl: ctrl,
		hub:  NewHub(log),
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.unsubscribe = ctrl.Subscribe(s.publish)
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/messages", s.handleMessage)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/locale", s.handleLocale)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Close detaches from the controller and drops every websocket.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.CloseAll()
}

func (s *Server) publish(v session.View) {
	data, err := stateFrame(v)
	if err != nil {
		s.log.Error("encode state frame", zap.Error(err))
		return
	}
	s.hub.Broadcast(data)
}

func stateFrame(v session.View) ([]byte, error) {
	st := NewState(v)
	return json.Marshal(Frame{Type: FrameState, State: &st})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewState(s.ctrl.View()))
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, req *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	token, ok := s.ctrl.Submit(body.Text)
	if !ok {
		http.Error(w, "session closed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uint64{"token": token})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewState(s.ctrl.Reset()))
}

type localeRequest struct {
	Locale string `json:"locale"`
}

func (s *Server) handleLocale(w http.ResponseWriter, req *http.Request) {
	var body localeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	locale := strings.TrimSpace(body.Locale)
	if locale == "" {
		http.Error(w, "missing locale", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, NewState(s.ctrl.SetLocale(locale)))
}

func (s *Server) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	s.hub.Add(conn)
	defer s.hub.Remove(conn)

	if data, err := stateFrame(s.ctrl.View()); err == nil {
		s.hub.SendToOne(conn, data)
	}

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read ended", zap.Error(err))
			}
			return
		}
		if reply := s.dispatch(in); reply != nil {
			if data, err := json.Marshal(reply); err == nil {
				s.hub.SendToOne(conn, data)
			}
		}
	}
}

// dispatch applies one client frame. State changes reach the client through
// the broadcast; only acks and errors are returned.
func (s *Server) dispatch(in Frame) *Frame {
	switch in.Type {
	case FrameSubmit:
		token, ok := s.ctrl.Submit(in.Text)
		if !ok {
			return &Frame{Type: FrameError, Error: "message not accepted"}
		}
		return &Frame{Type: FrameAck, Token: token}
	case FrameReset:
		s.ctrl.Reset()
		return nil
	case FrameLocale:
		if strings.TrimSpace(in.Locale) == "" {
			return &Frame{Type: FrameError, Error: "missing locale"}
		}
		s.ctrl.SetLocale(strings.TrimSpace(in.Locale))
		return nil
	default:
		return &Frame{Type: FrameError, Error: "unknown frame type " + in.Type}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
