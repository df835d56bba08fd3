package response

import (
	"context"
	"fmt"
	"iter"

	"sigma-chat/internal/transcript"
)

// Input is everything a collaborator needs to stay stateless itself.
type Input struct {
	Text     string
	ThreadID string
	Locale   string
	// History is the transcript before Text was submitted.
	History []transcript.Message
	Params  map[string]string
}

type Collaborator interface {
	Respond(ctx context.Context, in Input) (Outcome, error)
}

type CollaboratorFunc func(ctx context.Context, in Input) (Outcome, error)

func (f CollaboratorFunc) Respond(ctx context.Context, in Input) (Outcome, error) {
	return f(ctx, in)
}

// Reply is the structured record shape: text plus optional attachments.
type Reply struct {
	Text        string                  `json:"text"`
	Attachments []transcript.Attachment `json:"attachments,omitempty"`
}

// AnyFunc lets a collaborator return a loosely typed value; Adapt classifies
// it once, at this boundary.
type AnyFunc func(ctx context.Context, in Input) (any, error)

func (f AnyFunc) Respond(ctx context.Context, in Input) (Outcome, error) {
	v, err := f(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	return Adapt(v)
}

// Adapt checks for a lazily pulled sequence first, then bare text, then the
// structured record.
func Adapt(v any) (Outcome, error) {
	switch x := v.(type) {
	case Outcome:
		if x.IsZero() {
			return Outcome{}, ErrEmptyOutcome
		}
		return x, nil
	case iter.Seq2[string, error]:
		return Streaming(x), nil
	case func(func(string, error) bool):
		return Streaming(x), nil
	case iter.Seq[string]:
		return StreamingText(x), nil
	case func(func(string) bool):
		return StreamingText(x), nil
	case <-chan string:
		return Streaming(ChannelFragments(x)), nil
	case chan string:
		return Streaming(ChannelFragments(x)), nil
	case string:
		return Immediate(x), nil
	case []byte:
		return Immediate(string(x)), nil
	case Reply:
		return Structured(x.Text, x.Attachments), nil
	case *Reply:
		if x == nil {
			return Outcome{}, ErrEmptyOutcome
		}
		return Structured(x.Text, x.Attachments), nil
	case nil:
		return Outcome{}, ErrEmptyOutcome
	default:
		return Outcome{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}
