package transcript

import "time"

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

type Kind string

const (
	KindPlain           Kind = "plain"
	KindWithAttachments Kind = "with_attachments"
)

// Attachment is a catalog entry shown next to an agent answer.
type Attachment struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ImageURL    string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Price       string `json:"price,omitempty" yaml:"price,omitempty"`
	OldPrice    string `json:"old_price,omitempty" yaml:"old_price,omitempty"`
	Discount    string `json:"discount,omitempty" yaml:"discount,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Message struct {
	ID          string       `json:"id"`
	Sender      Sender       `json:"sender"`
	Kind        Kind         `json:"kind"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	// Final is set once the content can no longer grow.
	Final bool `json:"final"`
}

func DeriveKind(attachments []Attachment) Kind {
	if len(attachments) > 0 {
		return KindWithAttachments
	}
	return KindPlain
}

func (m Message) clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return m
}
