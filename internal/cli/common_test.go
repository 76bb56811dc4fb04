package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phrasematch/config"
	"phrasematch/internal/adapter/fuzzy"
)

func TestSearchConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Query.MaxCandidates = 500

	sc, err := searchConfig(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, 25, sc.Options.MaxResults)
	assert.Equal(t, 500, sc.Options.MaxCandidates)
	assert.Equal(t, fuzzy.TermScoringTokens, sc.Options.TermScoring)
	assert.Equal(t, cfg.Server.MaxLimit, sc.MaxLimit)

	sc, err = searchConfig(cfg, "whole")
	require.NoError(t, err)
	assert.Equal(t, fuzzy.TermScoringWhole, sc.Options.TermScoring)

	_, err = searchConfig(cfg, "fuzzy")
	assert.Error(t, err)
}

func TestOpenStore_MissingWithoutCreate(t *testing.T) {
	_, err := openStore(t.TempDir(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phrasematch load")
}

func TestOpenStore_Create(t *testing.T) {
	dir := t.TempDir()
	st, err := openStore(dir, true)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = openStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{300 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
