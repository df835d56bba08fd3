package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sigma-chat/internal/response"
)

type viewLog struct {
	mu    sync.Mutex
	views []View
}

func (l *viewLog) record(v View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.views = append(l.views, v)
}

func (l *viewLog) snapshot() []View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]View(nil), l.views...)
}

func TestControllerStreamsToSubscribers(t *testing.T) {
	s := newTestSession(t, replying(response.Chunks("He", "llo")), Options{Labels: Labels{Welcome: "W"}})
	c := NewController(s, zaptest.NewLogger(t))
	defer c.Close()

	var log viewLog
	unsubscribe := c.Subscribe(log.record)
	defer unsubscribe()

	token, ok := c.Submit("Hi")
	require.True(t, ok)
	require.Equal(t, uint64(1), token)
	c.Wait()

	views := log.snapshot()
	require.GreaterOrEqual(t, len(views), 3)
	require.True(t, views[0].Loading)

	final := c.View()
	require.False(t, final.Loading)
	require.Equal(t, []string{"agent:W", "user:Hi", "agent:Hello"}, contents(final.Messages))
	require.Equal(t, final, views[len(views)-1])
}

func TestControllerResetStopsStream(t *testing.T) {
	gate := make(chan struct{})
	first := make(chan struct{})
	feed := response.Fragments(func(yield func(string, error) bool) {
		if !yield("He", nil) {
			return
		}
		close(first)
		<-gate
		yield("llo", nil)
	})
	s := newTestSession(t, replying(feed), Options{Labels: Labels{Welcome: "W"}})
	c := NewController(s, zaptest.NewLogger(t))
	defer c.Close()

	_, ok := c.Submit("Hi")
	require.True(t, ok)

	<-first
	c.Reset()
	close(gate)
	c.Wait()

	v := c.View()
	require.Equal(t, []string{"agent:W"}, contents(v.Messages))
	require.False(t, v.Loading)
}

func TestControllerConcurrentSubmissions(t *testing.T) {
	release := make(chan struct{})
	c := response.AnyFunc(func(_ context.Context, in response.Input) (any, error) {
		if in.Text == "A" {
			<-release
		}
		return in.Text + "-reply", nil
	})
	s := newTestSession(t, c, Options{Labels: Labels{Welcome: "W"}})
	ctl := NewController(s, zaptest.NewLogger(t))
	defer ctl.Close()

	_, ok := ctl.Submit("A")
	require.True(t, ok)
	_, ok = ctl.Submit("B")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return !ctl.View().Loading
	}, time.Second, 5*time.Millisecond)
	close(release)
	ctl.Wait()

	require.Equal(t, []string{"agent:W", "user:A", "user:B", "agent:B-reply"}, contents(ctl.View().Messages))
}

func TestControllerCloseCancelsCollaborators(t *testing.T) {
	started := make(chan struct{})
	c := response.CollaboratorFunc(func(ctx context.Context, _ response.Input) (response.Outcome, error) {
		close(started)
		<-ctx.Done()
		return response.Outcome{}, ctx.Err()
	})
	s := newTestSession(t, c, Options{})
	ctl := NewController(s, zaptest.NewLogger(t))

	_, ok := ctl.Submit("Hi")
	require.True(t, ok)
	<-started
	ctl.Close()

	_, ok = ctl.Submit("again")
	require.False(t, ok)
	require.False(t, ctl.View().Loading)
}

func TestControllerUnsubscribe(t *testing.T) {
	s := newTestSession(t, replying("x"), Options{})
	ctl := NewController(s, zaptest.NewLogger(t))
	defer ctl.Close()

	var log viewLog
	unsubscribe := ctl.Subscribe(log.record)
	ctl.SetLocale("en")
	unsubscribe()
	ctl.Reset()

	require.Len(t, log.snapshot(), 1)
	require.Equal(t, "en", log.snapshot()[0].Locale)
}
