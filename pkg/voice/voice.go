// Package voice models speech capture and playback as injectable
// capabilities. Hosts without speech support get the Unsupported
// variants, which fail soft instead of probing the environment at call
// sites.
package voice

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by capability variants on hosts without
// speech support. Callers surface it as a notice, never as a fatal
// error.
var ErrUnsupported = errors.New("speech is not supported in this environment")

// Transcriber turns captured speech into text. Stop ends the capture
// and resolves to the transcript.
type Transcriber interface {
	Start() error
	Stop(ctx context.Context) (string, error)
	Supported() bool
}

// Synthesizer speaks assistant text aloud.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	Supported() bool
}

// StubTranscriber simulates capture: Stop resolves to a fixed phrase
// after a fixed delay. No audio is recorded.
type StubTranscriber struct {
	Phrase string
	Delay  time.Duration

	recording bool
}

const defaultStubPhrase = "Would you take 50 for it if I pick it up today?"

func NewStubTranscriber() *StubTranscriber {
	return &StubTranscriber{Phrase: defaultStubPhrase, Delay: 800 * time.Millisecond}
}

func (t *StubTranscriber) Start() error {
	t.recording = true
	return nil
}

func (t *StubTranscriber) Stop(ctx context.Context) (string, error) {
	if !t.recording {
		return "", errors.New("transcriber is not recording")
	}
	t.recording = false

	select {
	case <-time.After(t.Delay):
		return t.Phrase, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *StubTranscriber) Supported() bool { return true }

// UnsupportedTranscriber is the capability variant for hosts without
// speech capture.
type UnsupportedTranscriber struct{}

func (UnsupportedTranscriber) Start() error { return ErrUnsupported }

func (UnsupportedTranscriber) Stop(context.Context) (string, error) {
	return "", ErrUnsupported
}

func (UnsupportedTranscriber) Supported() bool { return false }

// UnsupportedSynthesizer is the capability variant for hosts without
// text-to-speech.
type UnsupportedSynthesizer struct{}

func (UnsupportedSynthesizer) Speak(context.Context, string) error { return ErrUnsupported }

func (UnsupportedSynthesizer) Supported() bool { return false }
