package providers

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagglekit/hagglekit/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error", false)
	os.Exit(m.Run())
}

type fakeProvider struct {
	reply string
	err   error
	calls int
	model string
}

func (f *fakeProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*Response, error) {
	f.calls++
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.reply, Model: model}, nil
}

func (f *fakeProvider) GetDefaultModel() string { return "fake-model" }

func TestFallbackPrimarySucceeds(t *testing.T) {
	primary := &fakeProvider{reply: "from primary"}
	backup := &fakeProvider{reply: "from backup"}
	p := NewFallbackProvider(primary, "m1", []FallbackEntry{{Provider: backup, Model: "m2"}})

	resp, err := p.Chat(context.Background(), nil, "m1", nil)
	require.NoError(t, err)
	assert.Equal(t, "from primary", resp.Content)
	assert.Zero(t, backup.calls)
}

func TestFallbackUsedWhenPrimaryFails(t *testing.T) {
	primary := &fakeProvider{err: errors.New("rate limited")}
	backup := &fakeProvider{reply: "from backup"}
	p := NewFallbackProvider(primary, "m1", []FallbackEntry{{Provider: backup, Model: "m2"}})

	resp, err := p.Chat(context.Background(), nil, "m1", nil)
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, "m2", backup.model)
}

func TestFallbackInheritsModelWhenUnset(t *testing.T) {
	primary := &fakeProvider{err: errors.New("down")}
	backup := &fakeProvider{reply: "ok"}
	p := NewFallbackProvider(primary, "m1", []FallbackEntry{{Provider: backup}})

	_, err := p.Chat(context.Background(), nil, "m1", nil)
	require.NoError(t, err)
	assert.Equal(t, "m1", backup.model)
}

func TestFallbackAllFail(t *testing.T) {
	primary := &fakeProvider{err: errors.New("down")}
	backup := &fakeProvider{err: errors.New("also down")}
	p := NewFallbackProvider(primary, "m1", []FallbackEntry{{Provider: backup, Model: "m2"}})

	_, err := p.Chat(context.Background(), nil, "m1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestFallbackNoFallbacksReturnsPrimaryError(t *testing.T) {
	primary := &fakeProvider{err: errors.New("down")}
	p := NewFallbackProvider(primary, "m1", nil)

	_, err := p.Chat(context.Background(), nil, "m1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
