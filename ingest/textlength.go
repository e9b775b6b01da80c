package ingest

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/lookatitude/videogen/core"
)

// TextLengthValidator rejects text longer than a configured rune count
// (spec §6.1's 100-character limit on the text field).
type TextLengthValidator struct {
	maxRunes int
}

// NewTextLengthValidator creates a TextLengthValidator with the given limit.
func NewTextLengthValidator(maxRunes int) *TextLengthValidator {
	return &TextLengthValidator{maxRunes: maxRunes}
}

// Name returns "text_length".
func (TextLengthValidator) Name() string { return "text_length" }

// Validate checks sub.Text's rune length. Empty text is allowed here; its
// requiredness (when no audio is supplied) is AudioTextValidator's concern.
func (v *TextLengthValidator) Validate(_ context.Context, sub Submission) (Result, error) {
	if n := utf8.RuneCountInString(sub.Text); n > v.maxRunes {
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("text is %d characters, exceeds limit %d", n, v.maxRunes),
			Code:    core.ErrInvalidInput,
		}, nil
	}
	return Result{Allowed: true}, nil
}

func init() {
	Register("text_length", func(cfg map[string]any) (Validator, error) {
		maxRunes := 100
		if v, ok := cfg["max_runes"].(int); ok && v > 0 {
			maxRunes = v
		}
		return NewTextLengthValidator(maxRunes), nil
	})
}
