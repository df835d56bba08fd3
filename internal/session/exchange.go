package session

import (
	"context"

	"go.uber.org/zap"

	"sigma-chat/internal/response"
	"sigma-chat/internal/transcript"
)

type EventKind string

const (
	EventResolved  EventKind = "resolved"
	EventFragment  EventKind = "fragment"
	EventExhausted EventKind = "exhausted"
	EventFailed    EventKind = "failed"
)

// Event is the result of one suspension point of an exchange: the
// collaborator resolving, or one pull of its fragment stream.
type Event struct {
	Token       uint64
	Kind        EventKind
	Text        string
	Attachments []transcript.Attachment
	Err         error
}

type Directive int

const (
	Stop Directive = iota
	Continue
)

func (d Directive) String() string {
	if d == Continue {
		return "continue"
	}
	return "stop"
}

// Exchange is one in-flight request. Its methods block and must be called
// one at a time; they never touch session state, Session.Apply does.
type Exchange struct {
	Token uint64
	Input response.Input

	collab response.Collaborator
	puller *response.Puller
	log    *zap.Logger
}

// Resolve invokes the collaborator. For a streaming outcome it also pulls
// the first fragment.
func (x *Exchange) Resolve(ctx context.Context) Event {
	out, err := response.Normalize(ctx, x.collab, x.Input)
	if err != nil {
		return x.failed(err)
	}
	switch out.Kind() {
	case response.KindStreaming:
		x.puller = response.Pull(out.Fragments())
		return x.Next()
	default:
		return Event{
			Token:       x.Token,
			Kind:        EventResolved,
			Text:        out.Text(),
			Attachments: out.Attachments(),
		}
	}
}

func (x *Exchange) Next() Event {
	if x.puller == nil {
		return Event{Token: x.Token, Kind: EventExhausted}
	}
	s, ok, err := x.puller.Next()
	if err != nil {
		return x.failed(err)
	}
	if !ok {
		return Event{Token: x.Token, Kind: EventExhausted}
	}
	return Event{Token: x.Token, Kind: EventFragment, Text: s}
}

// Abandon stops pulling. The collaborator's own work is not cancelled.
func (x *Exchange) Abandon() {
	if x.puller != nil {
		x.puller.Stop()
	}
}

func (x *Exchange) Streaming() bool {
	return x.puller != nil
}

func (x *Exchange) failed(err error) Event {
	x.log.Warn("response failed", zap.Uint64("token", x.Token), zap.Error(err))
	return Event{Token: x.Token, Kind: EventFailed, Err: err}
}
