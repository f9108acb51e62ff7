package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubTranscriberResolvesPhrase(t *testing.T) {
	tr := NewStubTranscriber()
	tr.Delay = 10 * time.Millisecond

	require.NoError(t, tr.Start())
	text, err := tr.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tr.Phrase, text)
	assert.True(t, tr.Supported())
}

func TestStubTranscriberStopWithoutStart(t *testing.T) {
	tr := NewStubTranscriber()
	_, err := tr.Stop(context.Background())
	assert.Error(t, err)
}

func TestStubTranscriberHonorsContext(t *testing.T) {
	tr := NewStubTranscriber()
	tr.Delay = time.Minute

	require.NoError(t, tr.Start())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnsupportedVariantsFailSoft(t *testing.T) {
	var tr Transcriber = UnsupportedTranscriber{}
	assert.False(t, tr.Supported())
	assert.ErrorIs(t, tr.Start(), ErrUnsupported)
	_, err := tr.Stop(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)

	var sy Synthesizer = UnsupportedSynthesizer{}
	assert.False(t, sy.Supported())
	assert.ErrorIs(t, sy.Speak(context.Background(), "hello"), ErrUnsupported)
}
