// Package corpus reads phrase records from delimited or plain-text files.
package corpus

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"phrasematch/config"
	"phrasematch/internal/adapter/fs"
	"phrasematch/internal/domain"
	"phrasematch/internal/port"
)

// FileSource loads records from every matching file under a root. CSV and
// TSV rows become one record each; text files yield one record per non-blank
// line, coded by the file's base name.
type FileSource struct {
	root   string
	walker *fs.Walker
	cfg    config.CorpusConfig
}

func NewFileSource(root string, cfg config.CorpusConfig) *FileSource {
	return &FileSource{
		root:   root,
		walker: fs.NewWalker(cfg.Includes, cfg.Excludes),
		cfg:    cfg,
	}
}

func (s *FileSource) Name() string {
	return "files:" + s.root
}

// Records returns records in file order then row order. Positions are
// sequential from zero.
func (s *FileSource) Records(ctx context.Context) ([]domain.Record, error) {
	files, err := s.walker.Walk(s.root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	var records []domain.Record
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileRecords, err := s.readFile(f)
		if err != nil {
			return nil, err
		}
		for _, r := range fileRecords {
			r.Position = len(records)
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *FileSource) readFile(f fs.FileInfo) ([]domain.Record, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch s.formatFor(f.Path) {
	case "csv":
		return s.parseDelimited(file, ',', f.RelPath)
	case "tsv":
		return s.parseDelimited(file, '\t', f.RelPath)
	default:
		return parseText(file, f.RelPath)
	}
}

func (s *FileSource) formatFor(path string) string {
	if s.cfg.Format != "" && s.cfg.Format != "auto" {
		return s.cfg.Format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".tsv", ".tab":
		return "tsv"
	default:
		return "text"
	}
}

func (s *FileSource) parseDelimited(r io.Reader, comma rune, source string) ([]domain.Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	if comma == '\t' {
		reader.LazyQuotes = true
	}

	var records []domain.Record
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if first && s.cfg.Header {
			first = false
			continue
		}
		first = false

		if s.cfg.PhraseColumn >= len(row) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%s:%d: no phrase column %d in row with %d fields", source, line, s.cfg.PhraseColumn, len(row))
		}
		records = append(records, domain.Record{
			Code:   column(row, s.cfg.CodeColumn),
			Phrase: row[s.cfg.PhraseColumn],
			Kind:   strings.ToLower(column(row, s.cfg.KindColumn)),
			Source: source,
		})
	}
	return records, nil
}

func column(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseText(r io.Reader, source string) ([]domain.Record, error) {
	code := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	var records []domain.Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records = append(records, domain.Record{
			Code:   code,
			Phrase: line,
			Source: source,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return records, nil
}

var _ port.RecordSource = (*FileSource)(nil)
