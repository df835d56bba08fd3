package response

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	ErrEmptyOutcome    = errors.New("collaborator returned no outcome")
	ErrUnsupported     = errors.New("unsupported response value")
	ErrNoCollaborator  = errors.New("no collaborator configured")
	ErrNilFragmentFeed = errors.New("streaming outcome without fragments")
)

type Stage string

const (
	StageResolve Stage = "resolve"
	StageStream  Stage = "stream"
)

// Failure is the one error kind the session recovers from: the collaborator
// rejected, panicked, or its fragment stream raised.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("response failure [%s]: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Normalize invokes the collaborator once and validates the outcome. It does
// not touch any session state.
func Normalize(ctx context.Context, c Collaborator, in Input) (out Outcome, err error) {
	if c == nil {
		return Outcome{}, &Failure{Stage: StageResolve, Err: ErrNoCollaborator}
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{}
			err = &Failure{Stage: StageResolve, Err: fmt.Errorf("collaborator panic: %v", r)}
		}
	}()

	o, rerr := c.Respond(ctx, in)
	if rerr != nil {
		if IsFailure(rerr) {
			return Outcome{}, rerr
		}
		return Outcome{}, &Failure{Stage: StageResolve, Err: rerr}
	}
	switch o.Kind() {
	case KindImmediate, KindStructured:
		return o, nil
	case KindStreaming:
		if o.Fragments() == nil {
			return Outcome{}, &Failure{Stage: StageResolve, Err: ErrNilFragmentFeed}
		}
		return o, nil
	default:
		return Outcome{}, &Failure{Stage: StageResolve, Err: ErrEmptyOutcome}
	}
}

// Puller pulls fragments one at a time. It is not safe for concurrent use,
// but successive calls may come from different goroutines.
type Puller struct {
	next func() (string, error, bool)
	stop func()
	done bool
}

func Pull(fragments Fragments) *Puller {
	next, stop := iter.Pull2(fragments)
	return &Puller{next: next, stop: stop}
}

// Next returns ok=false once the sequence is exhausted. A producer error or
// panic ends the sequence and comes back as a *Failure.
func (p *Puller) Next() (text string, ok bool, err error) {
	if p.done {
		return "", false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.done = true
			text, ok = "", false
			err = &Failure{Stage: StageStream, Err: fmt.Errorf("fragment producer panic: %v", r)}
		}
	}()

	s, ferr, more := p.next()
	if !more {
		p.done = true
		return "", false, nil
	}
	if ferr != nil {
		p.Stop()
		return "", false, &Failure{Stage: StageStream, Err: ferr}
	}
	return s, true, nil
}

// Stop abandons the sequence. Safe to call more than once.
func (p *Puller) Stop() {
	p.done = true
	p.stop()
}
