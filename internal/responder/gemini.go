package responder

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"sigma-chat/internal/response"
	"sigma-chat/internal/transcript"
)

const DefaultModel = "gemini-2.5-flash"

// StreamFunc has the shape of genai's Models.GenerateContentStream.
type StreamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Gemini streams model output fragment by fragment.
type Gemini struct {
	stream StreamFunc
	model  string
	system string
	log    *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model, system string, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return NewGeminiWithStream(client.Models.GenerateContentStream, model, system, log), nil
}

func NewGeminiWithStream(stream StreamFunc, model, system string, log *zap.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gemini{stream: stream, model: model, system: system, log: log}
}

func (g *Gemini) Respond(ctx context.Context, in response.Input) (response.Outcome, error) {
	contents := Contents(in.History, in.Text)
	var cfg *genai.GenerateContentConfig
	if g.system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		}
	}
	g.log.Debug("gemini request", zap.String("model", g.model), zap.Int("contents", len(contents)))
	return response.Streaming(g.fragments(ctx, contents, cfg)), nil
}

func (g *Gemini) fragments(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) response.Fragments {
	return func(yield func(string, error) bool) {
		for resp, err := range g.stream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// Contents maps the transcript onto model turns. Agent messages before the
// first user message (the greeting) and blank messages are left out.
func Contents(history []transcript.Message, text string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	seenUser := false
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleModel
		if m.Sender == transcript.SenderUser {
			role = genai.RoleUser
			seenUser = true
		}
		if !seenUser {
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(text, genai.RoleUser))
}
