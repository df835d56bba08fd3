package clipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

// Copier writes text to the system clipboard. The zero value is not usable;
// use New or build one with custom hooks in tests.
type Copier struct {
	Unsupported func() bool
	Write       func(string) error
}

func New() Copier {
	return Copier{
		Unsupported: func() bool { return clipboard.Unsupported },
		Write:       clipboard.WriteAll,
	}
}

func (c Copier) Copy(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Unsupported != nil && c.Unsupported() {
		return ErrToolNotFound
	}
	if err := c.Write(text); err != nil {
		return fmt.Errorf("write clipboard data: %w", err)
	}
	return nil
}

func Copy(ctx context.Context, text string) error {
	return New().Copy(ctx, text)
}
