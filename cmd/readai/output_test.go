package main

import (
	"bytes"
	"testing"

	"github.com/pbaille/readai/internal/config"
	"github.com/pbaille/readai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResultFormats(t *testing.T) {
	x := &domain.Explanation{Explanation: "e", KeyPoints: []string{"a", "b"}}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "json", x, nil))
	assert.JSONEq(t, `{"explanation": "e", "key_points": ["a", "b"]}`, buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, "yaml", x, nil))
	assert.Contains(t, buf.String(), "explanation: e\n")
	assert.Contains(t, buf.String(), "- b\n")
	assert.NotContains(t, buf.String(), "additional_resources")

	buf.Reset()
	require.NoError(t, printResult(&buf, "text", x, func() string { return formatExplanation(x) }))
	assert.Equal(t, "e\n\nKey points:\n  - a\n  - b\n", buf.String())
}

func TestFormatSources(t *testing.T) {
	list := &domain.SourceList{Sources: []domain.Source{
		{Title: "Gödel, Escher, Bach", Author: "Douglas Hofstadter", Year: "1979", Description: "Strange loops"},
		{Title: "Untitled notes"},
	}}
	assert.Equal(t,
		"Gödel, Escher, Bach, Douglas Hofstadter (1979)\n    Strange loops\nUntitled notes\n",
		formatSources(list))
	assert.Equal(t, "No sources suggested.\n", formatSources(&domain.SourceList{}))
}

func TestRedactMasksSecrets(t *testing.T) {
	cfg := config.NewDefault()
	cfg.AI.APIKey = "sk-secret"

	out := redact(cfg)
	assert.Equal(t, "********", out.AI.APIKey)
	assert.Equal(t, "********", out.Seed.Password)
	assert.Equal(t, "sk-secret", cfg.AI.APIKey)

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "yaml", out, nil))
	assert.NotContains(t, buf.String(), "sk-secret")
	assert.Contains(t, buf.String(), "provider: claude")
}
