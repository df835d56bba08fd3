// Package responder holds the collaborators that answer chat input: a
// Gemini model, the product catalog, a demo story stream and canned
// replies, chained by Router.
package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sigma-chat/internal/response"
)

// ErrNoAnswer tells Router to try the next collaborator.
var ErrNoAnswer = errors.New("no answer for input")

const (
	ModeAuto    = "auto"
	ModeGemini  = "gemini"
	ModeCatalog = "catalog"
	ModeCanned  = "canned"
)

// Router asks each collaborator in turn and returns the first answer.
type Router struct {
	Routes []response.Collaborator
	Log    *zap.Logger
}

func (r Router) Respond(ctx context.Context, in response.Input) (response.Outcome, error) {
	for i, c := range r.Routes {
		out, err := c.Respond(ctx, in)
		if errors.Is(err, ErrNoAnswer) {
			continue
		}
		if r.Log != nil {
			r.Log.Debug("routed", zap.Int("route", i), zap.String("kind", string(out.Kind())), zap.Error(err))
		}
		return out, err
	}
	return response.Outcome{}, ErrNoAnswer
}

type Options struct {
	Mode         string
	APIKey       string
	Model        string
	SystemPrompt string
	BotName      string
	Catalog      Searcher
	StoryDelay   time.Duration
	Logger       *zap.Logger
}

// New assembles the collaborator for a mode. Auto uses Gemini as the last
// resort when an API key is available and canned text otherwise.
func New(ctx context.Context, opts Options) (response.Collaborator, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	canned := Canned{BotName: opts.BotName, Fallback: DefaultFallback}

	switch opts.Mode {
	case ModeGemini:
		return NewGemini(ctx, opts.APIKey, opts.Model, systemPrompt(opts), log)
	case ModeCanned:
		return canned, nil
	case ModeCatalog:
		if opts.Catalog == nil {
			return nil, errors.New("catalog responder needs a catalog")
		}
		return Router{Routes: []response.Collaborator{
			&Catalog{Store: opts.Catalog},
			canned,
		}, Log: log}, nil
	case ModeAuto, "":
		routes := make([]response.Collaborator, 0, 4)
		if opts.Catalog != nil {
			routes = append(routes, &Catalog{Store: opts.Catalog})
		}
		routes = append(routes, Story{Delay: opts.StoryDelay})
		if opts.APIKey == "" {
			routes = append(routes, canned)
			return Router{Routes: routes, Log: log}, nil
		}
		gemini, err := NewGemini(ctx, opts.APIKey, opts.Model, systemPrompt(opts), log)
		if err != nil {
			return nil, err
		}
		named := canned
		named.Fallback = ""
		routes = append(routes, named, gemini)
		return Router{Routes: routes, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown responder mode %q", opts.Mode)
	}
}

func systemPrompt(opts Options) string {
	if opts.SystemPrompt != "" {
		return opts.SystemPrompt
	}
	name := opts.BotName
	if name == "" {
		name = "Sigma"
	}
	return "Bạn là " + name + ", trợ lý bán hàng thân thiện của một cửa hàng điện thoại và laptop. " +
		"Trả lời ngắn gọn bằng ngôn ngữ của khách. Có thể dùng **in đậm**, danh sách gạch đầu dòng, " +
		"tiêu đề # và bảng | a | b |."
}
