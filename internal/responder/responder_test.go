package responder

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"sigma-chat/internal/catalog"
	"sigma-chat/internal/response"
	"sigma-chat/internal/transcript"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func drain(t *testing.T, out response.Outcome) (string, error) {
	t.Helper()
	require.Equal(t, response.KindStreaming, out.Kind())
	var b strings.Builder
	for s, err := range out.Fragments() {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

type fakeSearcher map[string][]catalog.Product

func (f fakeSearcher) Search(_ context.Context, query string, _ int) ([]catalog.Product, error) {
	return f[strings.ToLower(query)], nil
}

func product(id, name string) catalog.Product {
	return catalog.Product{Attachment: transcript.Attachment{ID: id, Name: name}}
}

func TestCannedAnswersNameFromHistory(t *testing.T) {
	c := Canned{BotName: "Sigma Expert", Fallback: DefaultFallback}
	out, err := c.Respond(context.Background(), response.Input{
		Text:    "Bạn tên gì?",
		History: make([]transcript.Message, 3),
	})
	require.NoError(t, err)
	require.Equal(t, response.KindImmediate, out.Kind())
	require.Equal(t, "Tên tôi là Sigma Expert, tôi đã thấy bạn nhắn 3 tin nhắn trước đó.", out.Text())

	out, err = c.Respond(context.Background(), response.Input{
		Text:   "what is your name",
		Params: map[string]string{"bot_name": "Bitu"},
	})
	require.NoError(t, err)
	require.Contains(t, out.Text(), "Bitu")
}

func TestCannedFallbackAndDecline(t *testing.T) {
	out, err := Canned{Fallback: "?"}.Respond(context.Background(), response.Input{Text: "hmm"})
	require.NoError(t, err)
	require.Equal(t, "?", out.Text())

	_, err = Canned{}.Respond(context.Background(), response.Input{Text: "hmm"})
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestStoryStreamsChunks(t *testing.T) {
	out, err := Story{}.Respond(context.Background(), response.Input{Text: "Kể một câu chuyện"})
	require.NoError(t, err)

	text, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, strings.Join(storyChunks, ""), text)

	_, err = Story{}.Respond(context.Background(), response.Input{Text: "iphone"})
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestStoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out, err := Story{Delay: time.Hour}.Respond(ctx, response.Input{Text: "story"})
	require.NoError(t, err)
	cancel()

	text, err := drain(t, out)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, text)
}

func TestCatalogStructuredAnswer(t *testing.T) {
	c := &Catalog{Store: fakeSearcher{
		"iphone": {product("p1", "iPhone 15")},
	}}
	out, err := c.Respond(context.Background(), response.Input{Text: "iphone"})
	require.NoError(t, err)
	require.Equal(t, response.KindStructured, out.Kind())
	require.Equal(t, DefaultCatalogIntro, out.Text())
	require.Equal(t, []transcript.Attachment{{ID: "p1", Name: "iPhone 15"}}, out.Attachments())
}

func TestCatalogFallsBackToWords(t *testing.T) {
	c := &Catalog{Store: fakeSearcher{
		"iphone":  {product("p1", "iPhone 15")},
		"samsung": {product("p2", "Galaxy"), product("p1", "iPhone 15")},
	}, Intro: "Có ngay:"}
	out, err := c.Respond(context.Background(), response.Input{Text: "so sánh iPhone và Samsung"})
	require.NoError(t, err)
	require.Equal(t, "Có ngay:", out.Text())
	require.Len(t, out.Attachments(), 2)
	require.Equal(t, "p1", out.Attachments()[0].ID)
	require.Equal(t, "p2", out.Attachments()[1].ID)

	_, err = c.Respond(context.Background(), response.Input{Text: "bảo hành"})
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestRouterFallsThrough(t *testing.T) {
	r := Router{Routes: []response.Collaborator{
		Story{},
		Canned{Fallback: "fallback"},
	}, Log: zaptest.NewLogger(t)}

	out, err := r.Respond(context.Background(), response.Input{Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, "fallback", out.Text())

	out, err = r.Respond(context.Background(), response.Input{Text: "story"})
	require.NoError(t, err)
	_, err = drain(t, out)
	require.NoError(t, err)

	_, err = Router{}.Respond(context.Background(), response.Input{Text: "x"})
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestRouterStopsOnRealError(t *testing.T) {
	boom := errors.New("db locked")
	r := Router{Routes: []response.Collaborator{
		response.CollaboratorFunc(func(context.Context, response.Input) (response.Outcome, error) {
			return response.Outcome{}, boom
		}),
		Canned{Fallback: "never"},
	}}
	_, err := r.Respond(context.Background(), response.Input{Text: "x"})
	require.ErrorIs(t, err, boom)
}

func modelChunk(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGeminiStreamsAndSkipsEmptyChunks(t *testing.T) {
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig
	stream := func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		gotContents, gotConfig = contents, cfg
		require.Equal(t, "test-model", model)
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, s := range []string{"Xin ", "", "chào"} {
				if !yield(modelChunk(s), nil) {
					return
				}
			}
		}
	}
	g := NewGeminiWithStream(stream, "test-model", "be brief", zaptest.NewLogger(t))

	history := []transcript.Message{
		{Sender: transcript.SenderAgent, Content: "welcome"},
		{Sender: transcript.SenderUser, Content: "hi"},
		{Sender: transcript.SenderAgent, Content: "hello"},
	}
	out, err := g.Respond(context.Background(), response.Input{Text: "bạn khỏe không", History: history})
	require.NoError(t, err)

	text, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, "Xin chào", text)

	require.Len(t, gotContents, 3)
	require.Equal(t, genai.RoleUser, gotContents[0].Role)
	require.Equal(t, genai.RoleModel, gotContents[1].Role)
	require.Equal(t, "bạn khỏe không", gotContents[2].Parts[0].Text)
	require.NotNil(t, gotConfig)
	require.Equal(t, "be brief", gotConfig.SystemInstruction.Parts[0].Text)
}

func TestGeminiSurfacesStreamError(t *testing.T) {
	boom := errors.New("quota exceeded")
	stream := func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			if !yield(modelChunk("par"), nil) {
				return
			}
			yield(nil, boom)
		}
	}
	g := NewGeminiWithStream(stream, "", "", nil)
	out, err := g.Respond(context.Background(), response.Input{Text: "x"})
	require.NoError(t, err)

	text, err := drain(t, out)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "par", text)
}

func TestNewModes(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Options{Mode: ModeCanned})
	require.NoError(t, err)
	out, err := c.Respond(ctx, response.Input{Text: "?"})
	require.NoError(t, err)
	require.Equal(t, DefaultFallback, out.Text())

	_, err = New(ctx, Options{Mode: ModeCatalog})
	require.Error(t, err)

	_, err = New(ctx, Options{Mode: ModeGemini})
	require.Error(t, err)

	_, err = New(ctx, Options{Mode: "oracle"})
	require.Error(t, err)

	c, err = New(ctx, Options{Mode: ModeAuto, Catalog: fakeSearcher{"iphone": {product("p1", "iPhone")}}})
	require.NoError(t, err)
	out, err = c.Respond(ctx, response.Input{Text: "iphone"})
	require.NoError(t, err)
	require.Equal(t, response.KindStructured, out.Kind())
	out, err = c.Respond(ctx, response.Input{Text: "kể chuyện"})
	require.NoError(t, err)
	require.Equal(t, response.KindStreaming, out.Kind())
	_, err = drain(t, out)
	require.NoError(t, err)
}
