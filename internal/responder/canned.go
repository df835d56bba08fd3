package responder

import (
	"context"
	"fmt"
	"strings"

	"sigma-chat/internal/response"
)

const DefaultFallback = "Xin lỗi, tôi chưa hiểu ý bạn. Bạn có muốn xem 'điện thoại' hay nghe 'kể chuyện' không?"

var nameQuestions = []string{"tên gì", "tên bạn", "your name", "who are you"}

// Canned answers the name question from the transcript length and falls
// back to a fixed text. An empty Fallback makes it decline instead.
type Canned struct {
	BotName  string
	Fallback string
}

func (c Canned) Respond(_ context.Context, in response.Input) (response.Outcome, error) {
	query := strings.ToLower(in.Text)
	for _, q := range nameQuestions {
		if strings.Contains(query, q) {
			return response.Immediate(fmt.Sprintf(
				"Tên tôi là %s, tôi đã thấy bạn nhắn %d tin nhắn trước đó.",
				c.name(in), len(in.History),
			)), nil
		}
	}
	if c.Fallback == "" {
		return response.Outcome{}, ErrNoAnswer
	}
	return response.Immediate(c.Fallback), nil
}

func (c Canned) name(in response.Input) string {
	if n := in.Params["bot_name"]; n != "" {
		return n
	}
	if c.BotName != "" {
		return c.BotName
	}
	return "Sigma"
}
