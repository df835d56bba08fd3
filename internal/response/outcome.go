// Package response defines what a collaborator may answer with and turns it
// into one of three outcomes: an immediate text, a structured text with
// attachments, or a lazily pulled stream of text fragments.
package response

import (
	"iter"

	"sigma-chat/internal/transcript"
)

type Kind string

const (
	KindImmediate  Kind = "immediate"
	KindStructured Kind = "structured"
	KindStreaming  Kind = "streaming"
)

// Fragments is finite and cannot be restarted. Consumers either drain it or
// stop pulling.
type Fragments = iter.Seq2[string, error]

type Outcome struct {
	kind        Kind
	text        string
	attachments []transcript.Attachment
	fragments   Fragments
}

func Immediate(text string) Outcome {
	return Outcome{kind: KindImmediate, text: text}
}

func Structured(text string, attachments []transcript.Attachment) Outcome {
	items := make([]transcript.Attachment, len(attachments))
	copy(items, attachments)
	return Outcome{kind: KindStructured, text: text, attachments: items}
}

func Streaming(fragments Fragments) Outcome {
	return Outcome{kind: KindStreaming, fragments: fragments}
}

// StreamingText adapts an infallible text sequence.
func StreamingText(seq iter.Seq[string]) Outcome {
	if seq == nil {
		return Streaming(nil)
	}
	return Streaming(func(yield func(string, error) bool) {
		for s := range seq {
			if !yield(s, nil) {
				return
			}
		}
	})
}

func (o Outcome) Kind() Kind { return o.kind }

func (o Outcome) Text() string { return o.text }

func (o Outcome) Attachments() []transcript.Attachment {
	out := make([]transcript.Attachment, len(o.attachments))
	copy(out, o.attachments)
	return out
}

func (o Outcome) Fragments() Fragments { return o.fragments }

func (o Outcome) IsZero() bool { return o.kind == "" }

// Chunks streams the given fragments in order.
func Chunks(chunks ...string) Fragments {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// ChannelFragments streams from ch until it is closed. Abandoning the
// sequence stops receiving; the sender owns unblocking itself.
func ChannelFragments(ch <-chan string) Fragments {
	return func(yield func(string, error) bool) {
		for s := range ch {
			if !yield(s, nil) {
				return
			}
		}
	}
}
