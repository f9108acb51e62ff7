package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesMatchTheirKind(t *testing.T) {
	transport := Transport("openai", errors.New("connection refused"))
	parse := Parse("analysis response", errors.New("unexpected end of input"))
	validation := Validation("the file %q is empty", "a.png")

	assert.True(t, IsTransport(transport))
	assert.False(t, IsTransport(parse))
	assert.False(t, IsTransport(validation))

	assert.True(t, IsParse(parse))
	assert.False(t, IsParse(transport))

	assert.True(t, IsValidation(validation))
	assert.False(t, IsValidation(transport))

	assert.False(t, IsTransport(nil))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("sending turn: %w", Transport("anthropic", errors.New("429")))
	assert.True(t, IsTransport(err))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	assert.ErrorIs(t, Transport("gemini", cause), cause)
	assert.ErrorIs(t, Parse("reply", cause), cause)
}

func TestMessages(t *testing.T) {
	assert.Contains(t, Transport("openai", errors.New("boom")).Error(), "openai")
	assert.Contains(t, Validation("the file %q is empty", "a.png").Error(), "a.png")
}
