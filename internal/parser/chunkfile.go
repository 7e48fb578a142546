package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

// Strategy turns the lines of a chunk file into chunks. ok is false when the
// strategy does not recognize the format and the next one should be tried.
type Strategy interface {
	Name() string
	Parse(lines []string) (chunks []string, ok bool)
}

// DefaultStrategies returns the strategies in the order they are tried.
func DefaultStrategies() []Strategy {
	return []Strategy{
		JSONLines{},
		NewSeparatorBlocks(),
		RawLines{},
	}
}

// ParseChunkFile reads path and returns its chunks together with the name of
// the strategy that produced them.
func ParseChunkFile(path string, strategies ...Strategy) ([]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read chunk file %s: %v", models.ErrInput, path, err)
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	lines, err := splitLines(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: scan chunk file %s: %v", models.ErrInput, path, err)
	}

	for _, s := range strategies {
		chunks, ok := s.Parse(lines)
		if !ok {
			log.Debug().Str("strategy", s.Name()).Msg("Chunk format not recognized")
			continue
		}
		if len(chunks) == 0 {
			return nil, s.Name(), fmt.Errorf("%w in %s", models.ErrNoChunks, path)
		}
		return chunks, s.Name(), nil
	}
	return nil, "", fmt.Errorf("%w in %s", models.ErrNoChunks, path)
}

func splitLines(data []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// JSONLines expects one {"text": "..."} object per line. Lines that are not
// JSON are kept as plain-text chunks; the format is recognized as soon as a
// single line decodes as an object.
type JSONLines struct{}

func (JSONLines) Name() string { return "jsonl" }

func (JSONLines) Parse(lines []string) ([]string, bool) {
	var chunks []string
	recognized := false
	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		var rec struct {
			Text *string `json:"text"`
		}
		if !strings.HasPrefix(line, "{") || json.Unmarshal([]byte(line), &rec) != nil {
			chunks = append(chunks, line)
			continue
		}
		recognized = true
		if rec.Text == nil || strings.TrimSpace(*rec.Text) == "" {
			log.Warn().Int("line", n+1).Msg("Skipping JSON line without text")
			continue
		}
		chunks = append(chunks, strings.TrimSpace(*rec.Text))
	}
	if !recognized {
		return nil, false
	}
	return chunks, true
}

// SeparatorBlocks reads the legacy format written by the upload backend:
//
//	--- CHUNK 1 ---
//	text...
//
//	--- CHUNK 2 ---
type SeparatorBlocks struct {
	headerRe *regexp.Regexp
}

func NewSeparatorBlocks() SeparatorBlocks {
	return SeparatorBlocks{headerRe: regexp.MustCompile(models.ChunkHeaderRegex)}
}

func (SeparatorBlocks) Name() string { return "separator" }

type separatorState struct {
	inBlock bool
	current []string
	result  []string
}

func (s SeparatorBlocks) Parse(lines []string) ([]string, bool) {
	var state separatorState
	recognized := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if s.headerRe.MatchString(line) {
			recognized = true
			flushBlock(&state)
			state.inBlock = true
			continue
		}
		// text before the first header is not part of any chunk
		if state.inBlock {
			state.current = append(state.current, line)
		}
	}
	flushBlock(&state)
	if !recognized {
		return nil, false
	}
	return state.result, true
}

func flushBlock(state *separatorState) {
	text := strings.TrimSpace(strings.Join(state.current, "\n"))
	if text != "" {
		state.result = append(state.result, text)
	}
	state.current = state.current[:0]
}

// RawLines treats every non-empty line as a chunk. It always applies.
type RawLines struct{}

func (RawLines) Name() string { return "lines" }

func (RawLines) Parse(lines []string) ([]string, bool) {
	var chunks []string
	for _, raw := range lines {
		if line := strings.TrimSpace(raw); line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks, true
}

// WriteChunkFile writes chunks as JSON lines, the format ParseChunkFile prefers.
func WriteChunkFile(path string, chunks []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		if err := enc.Encode(struct {
			Text string `json:"text"`
		}{c}); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
