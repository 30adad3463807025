package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pbaille/readai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []Prompt
	block   bool
}

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newTestAssistant(c Completer) *Assistant {
	return NewAssistant(c, Options{Timeout: time.Second}, arbor.NewLogger())
}

func TestExplainDecodesFencedJSON(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n" + `{
  "explanation": "Photosynthesis turns light into chemical energy.",
  "key_points": ["light", "chlorophyll"],
  "additional_resources": [{"title": "Campbell Biology", "description": "Textbook"}]
}` + "\n```"}

	got, err := newTestAssistant(fake).Explain(context.Background(), "photosynthesis")
	require.NoError(t, err)

	assert.Equal(t, "Photosynthesis turns light into chemical energy.", got.Explanation)
	assert.Equal(t, []string{"light", "chlorophyll"}, got.KeyPoints)
	require.Len(t, got.AdditionalResources, 1)
	assert.Equal(t, "Campbell Biology", got.AdditionalResources[0].Title)

	require.Len(t, fake.prompts, 1)
	assert.True(t, fake.prompts[0].JSON)
	assert.Contains(t, fake.prompts[0].User, "photosynthesis")
	assert.Contains(t, fake.prompts[0].System, "key_points")
}

func TestExplainRejectsBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "Sure! Here is an explanation."},
		{"missing explanation", `{"key_points": ["a"]}`},
		{"missing key points", `{"explanation": "x"}`},
		{"resource without title", `{"explanation": "x", "key_points": [], "additional_resources": [{"description": "d"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAssistant(&fakeCompleter{reply: tt.reply}).Explain(context.Background(), "x")
			var remote *domain.RemoteServiceError
			require.True(t, errors.As(err, &remote), "got %v", err)
			assert.Equal(t, "explain", remote.Op)
		})
	}
}

func TestCompleterFailureIsRemoteServiceError(t *testing.T) {
	cause := errors.New("connection reset")
	_, err := newTestAssistant(&fakeCompleter{err: cause}).Summarize(context.Background(), "text")

	var remote *domain.RemoteServiceError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "summarize", remote.Op)
	assert.ErrorIs(t, err, cause)
}

func TestCallsRunUnderTimeout(t *testing.T) {
	a := NewAssistant(&fakeCompleter{block: true}, Options{Timeout: 20 * time.Millisecond}, arbor.NewLogger())

	_, err := a.FindSources(context.Background(), "topic")
	var remote *domain.RemoteServiceError
	require.True(t, errors.As(err, &remote))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSummarizeTruncatesInput(t *testing.T) {
	fake := &fakeCompleter{reply: "  A short summary.  "}
	a := NewAssistant(fake, Options{MaxInputChars: 10}, arbor.NewLogger())

	got, err := a.Summarize(context.Background(), strings.Repeat("a", 25))
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)

	require.Len(t, fake.prompts, 1)
	assert.True(t, strings.HasSuffix(fake.prompts[0].User, "\n\naaaaaaaaaa..."))
	assert.False(t, fake.prompts[0].JSON)
}

func TestSummarizeEmptyReply(t *testing.T) {
	got, err := newTestAssistant(&fakeCompleter{reply: "   "}).Summarize(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, SummaryUnavailable, got)
}

func TestFindSourcesAcceptsNumericYears(t *testing.T) {
	fake := &fakeCompleter{reply: `{"sources": [
		{"title": "The Selfish Gene", "author": "Richard Dawkins", "year": 1976, "description": "Gene-centred evolution"},
		{"title": "On the Origin of Species", "author": "Charles Darwin", "year": "1859", "description": "Natural selection"}
	]}`}

	got, err := newTestAssistant(fake).FindSources(context.Background(), "evolution")
	require.NoError(t, err)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, domain.Year("1976"), got.Sources[0].Year)
	assert.Equal(t, domain.Year("1859"), got.Sources[1].Year)
}

func TestFindSourcesRequiresList(t *testing.T) {
	_, err := newTestAssistant(&fakeCompleter{reply: `{"results": []}`}).FindSources(context.Background(), "x")
	var remote *domain.RemoteServiceError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "sources", remote.Op)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  \n", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "héll...", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestNewCompleterWithoutKey(t *testing.T) {
	c, err := NewCompleter(context.Background(), Config{Provider: "claude"}, arbor.NewLogger())
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{User: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewCompleter(context.Background(), Config{Provider: "openai", APIKey: "k"}, arbor.NewLogger())
	assert.ErrorContains(t, err, "unknown ai provider")
}
