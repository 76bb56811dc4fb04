package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phrasematch/config"
	"phrasematch/internal/domain"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFileSource_CSVWithHeader(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "icd.csv", "code,phrase,kind\nS61,Open wound of wrist,TERM\nL98,\"fistula, wrist\",synonym\n")

	cfg := config.DefaultConfig().Corpus
	cfg.Header = true
	records, err := NewFileSource(dir, cfg).Records(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Record{
		{Position: 0, Code: "S61", Phrase: "Open wound of wrist", Kind: "term", Source: "icd.csv"},
		{Position: 1, Code: "L98", Phrase: "fistula, wrist", Kind: "synonym", Source: "icd.csv"},
	}, records)
}

func TestFileSource_MixedFormatsSequentialPositions(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.tsv", "R50.2\tdrug induced fever\nM25.53\tpain in wrist\n")
	write(t, dir, "b/symptoms.txt", "# comment\nfever\n\n  chills  \n")
	write(t, dir, "c.md", "ignored\n")

	records, err := NewFileSource(dir, config.DefaultConfig().Corpus).Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, r := range records {
		assert.Equal(t, i, r.Position)
	}
	assert.Equal(t, "drug induced fever", records[0].Phrase)
	assert.Equal(t, "R50.2", records[0].Code)
	assert.Equal(t, "", records[0].Kind)
	assert.Equal(t, domain.Record{Position: 3, Code: "symptoms", Phrase: "chills", Source: "b/symptoms.txt"}, records[3])
}

func TestFileSource_ForcedFormatAndColumns(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.txt", "fever;R50\n")

	cfg := config.DefaultConfig().Corpus
	cfg.Format = "csv"
	cfg.PhraseColumn = 0
	cfg.CodeColumn = 1
	cfg.KindColumn = -1

	// A semicolon is not the csv delimiter, so the whole line is one field.
	records, err := NewFileSource(dir, cfg).Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fever;R50", records[0].Phrase)
	assert.Equal(t, "", records[0].Code)
}

func TestFileSource_MissingPhraseColumn(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "bad.csv", "onlyone\n")

	_, err := NewFileSource(dir, config.DefaultConfig().Corpus).Records(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestFileSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.txt", "fever\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource(dir, config.DefaultConfig().Corpus).Records(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_SingleFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "list.txt", "acute bronchitis\n")

	records, err := NewFileSource(filepath.Join(dir, "list.txt"), config.DefaultConfig().Corpus).Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "list", records[0].Code)
}
