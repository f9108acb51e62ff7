package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagglekit/hagglekit/pkg/analysis"
	"github.com/hagglekit/hagglekit/pkg/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessagesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	m1 := chat.NewMessage(chat.AuthorUser, "is it still for sale?")
	m2 := chat.NewMessage(chat.AuthorAssistant, "Ask if the price is flexible.")
	m2.HasAttachment = false
	require.NoError(t, s.SaveMessage("s1", m1))
	require.NoError(t, s.SaveMessage("s1", m2))
	require.NoError(t, s.SaveMessage("other", chat.NewMessage(chat.AuthorUser, "unrelated")))

	msgs, err := s.LoadMessages("s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m1.ID, msgs[0].ID)
	assert.Equal(t, chat.AuthorUser, msgs[0].Author)
	assert.Equal(t, "Ask if the price is flexible.", msgs[1].Text)
}

func TestLoadMessagesEmptySession(t *testing.T) {
	s := openTestStore(t)

	msgs, err := s.LoadMessages("nothing-here")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageFlagsSurviveRoundTrip(t *testing.T) {
	s := openTestStore(t)

	m := chat.NewMessage(chat.AuthorUser, "[screenshot: chat.png]")
	m.HasAttachment = true
	require.NoError(t, s.SaveMessage("s1", m))

	msgs, err := s.LoadMessages("s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].HasAttachment)
	assert.False(t, msgs[0].IsVoice)
}

func TestAnalysisUpsert(t *testing.T) {
	s := openTestStore(t)

	first := &analysis.Result{Sentiment: analysis.SentimentNeutral, SuggestedResponse: "first"}
	require.NoError(t, s.SaveAnalysis("s1", first))

	second := &analysis.Result{Sentiment: analysis.SentimentPositive, SuggestedResponse: "second", Degraded: true}
	require.NoError(t, s.SaveAnalysis("s1", second))

	got, err := s.LoadAnalysis("s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, analysis.SentimentPositive, got.Sentiment)
	assert.Equal(t, "second", got.SuggestedResponse)
	assert.True(t, got.Degraded)
}

func TestLoadAnalysisMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadAnalysis("s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
