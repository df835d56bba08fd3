package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigma-chat/internal/transcript"
)

type Exporter struct {
	dir     string
	botName string
	now     func() time.Time
}

func New(dir, botName string) (*Exporter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve cwd: %w", err)
		}
		dir = cwd
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve export dir: %w", err)
		}
		dir = abs
	}
	return &Exporter{dir: dir, botName: botName, now: time.Now}, nil
}

// Export writes the transcript of one thread as Markdown and returns the
// file path.
func (e *Exporter) Export(threadID string, messages []transcript.Message) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, safeFileName(threadID)+".md")

	body := BuildTranscriptMarkdown(messages, e.botName)
	md := BuildSessionMarkdown(threadID, len(messages), body, e.now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func BuildTranscriptMarkdown(messages []transcript.Message, botName string) string {
	if botName == "" {
		botName = "Agent"
	}
	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" && len(m.Attachments) == 0 {
			continue
		}
		switch m.Sender {
		case transcript.SenderUser:
			b.WriteString("## You\n\n")
		default:
			header := "## " + botName
			if !m.Final {
				header += " (incomplete)"
			}
			b.WriteString(header + "\n\n")
		}
		if content != "" {
			b.WriteString(content + "\n\n")
		}
		for _, a := range m.Attachments {
			b.WriteString(attachmentLine(a) + "\n")
		}
		if len(m.Attachments) > 0 {
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func attachmentLine(a transcript.Attachment) string {
	parts := []string{"**" + safeValue(a.Name) + "**"}
	if a.Price != "" {
		price := a.Price
		if a.OldPrice != "" {
			price += " (was " + a.OldPrice + ")"
		}
		if a.Discount != "" {
			price += " " + a.Discount
		}
		parts = append(parts, price)
	}
	if a.Description != "" {
		parts = append(parts, a.Description)
	}
	return "- " + strings.Join(parts, " · ")
}

func BuildSessionMarkdown(threadID string, count int, body string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Chat " + safeValue(threadID) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString(fmt.Sprintf("message_count: %d\n", count))
	b.WriteString("```\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "chat"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
