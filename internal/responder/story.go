package responder

import (
	"context"
	"strings"
	"time"

	"sigma-chat/internal/response"
)

var storyTriggers = []string{"kể chuyện", "câu chuyện", "story"}

var storyChunks = []string{
	"Ngày xửa ngày xưa, ",
	"có một thư viện tên là **Sigma Chat**... ",
	"\n\nNó giúp các lập trình viên ",
	"xây dựng giao diện chat cực nhanh ",
	"chỉ với vài dòng code. ",
	"\n\nCâu chuyện kết thúc ở đây, chúc bạn code vui vẻ!",
}

// Story streams a short demo text with a pause before every fragment.
type Story struct {
	Delay time.Duration
}

func (s Story) Respond(ctx context.Context, in response.Input) (response.Outcome, error) {
	query := strings.ToLower(in.Text)
	matched := false
	for _, t := range storyTriggers {
		if strings.Contains(query, t) {
			matched = true
			break
		}
	}
	if !matched {
		return response.Outcome{}, ErrNoAnswer
	}
	return response.Streaming(s.fragments(ctx)), nil
}

func (s Story) fragments(ctx context.Context) response.Fragments {
	return func(yield func(string, error) bool) {
		for _, chunk := range storyChunks {
			if s.Delay > 0 {
				t := time.NewTimer(s.Delay)
				select {
				case <-ctx.Done():
					t.Stop()
					yield("", ctx.Err())
					return
				case <-t.C:
				}
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
