package convert

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/local/sheetmd/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ParsedFile is one (filename, content) pair extracted from a generation
// response. Filename always ends in .md; content is never empty.
type ParsedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ParsedResponse is the tagged parse outcome. Structured means the file list
// came out of the JSON cascade; otherwise Files holds exactly one entry with
// the fence-stripped raw text.
type ParsedResponse struct {
	Files      []ParsedFile
	Structured bool
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	braceSpanPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	leadingFence      = regexp.MustCompile("^```(?:markdown)?\\s*")
	trailingFence     = regexp.MustCompile("\\s*```$")
)

type filesEnvelope struct {
	Files []ParsedFile `json:"files"`
}

// ParseResponse extracts the file list from raw generation output. It never
// fails: when no structured extraction succeeds the whole text becomes a
// single Markdown file named after fallbackBase.
//
// Cascade, first success wins:
//  1. the whole text as a JSON object with a "files" list
//  2. the interior of a ```json fenced block
//  3. the first {...} span in the text
//  4. raw text as one file (code-fence wrapper stripped)
//
// Filenames are normalized to end in .md and prefixed with baseName unless
// already so prefixed. Empty-content entries are dropped with a warning. In
// batch mode a count mismatch against expectedNames is logged, not an error.
func ParseResponse(raw, baseName, fallbackBase string, expectedNames []string) ParsedResponse {
	if files, stage, ok := extractFiles(raw); ok {
		metrics.IncParse(stage)
		if expectedNames != nil && len(files) != len(expectedNames) {
			log.Warn().Int("expected", len(expectedNames)).Int("got", len(files)).Msg("batch response file count mismatch")
		}
		return ParsedResponse{Files: normalizeFiles(files, baseName), Structured: true}
	}

	metrics.IncParse("raw")
	log.Warn().Str("base", fallbackBase).Msg("response not parseable as structured file list, saving as single markdown file")
	return ParsedResponse{
		Files: []ParsedFile{{
			Filename: ensureMarkdownExt(fallbackBase),
			Content:  stripFenceWrapper(raw),
		}},
	}
}

func extractFiles(raw string) ([]ParsedFile, string, bool) {
	if files, ok := decodeEnvelope(raw); ok {
		return files, "direct", true
	}
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		if files, ok := decodeEnvelope(m[1]); ok {
			return files, "fenced", true
		}
	}
	if span := braceSpanPattern.FindString(raw); span != "" {
		if files, ok := decodeEnvelope(span); ok {
			return files, "brace", true
		}
	}
	return nil, "", false
}

// decodeEnvelope accepts only a JSON object that actually carries a "files"
// key; a well-formed object without it still falls through to the raw save.
func decodeEnvelope(s string) ([]ParsedFile, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	rawFiles, ok := probe["files"]
	if !ok {
		log.Warn().Int("keys", len(probe)).Msg("JSON parsed but files key missing")
		return nil, false
	}
	var files []ParsedFile
	if err := json.Unmarshal(rawFiles, &files); err != nil {
		return nil, false
	}
	return files, true
}

func normalizeFiles(files []ParsedFile, baseName string) []ParsedFile {
	out := make([]ParsedFile, 0, len(files))
	for i, f := range files {
		if f.Content == "" {
			log.Warn().Str("filename", f.Filename).Msg("dropping file entry with empty content")
			continue
		}
		name := f.Filename
		if name == "" {
			name = "sheet_" + strconv.Itoa(i)
		}
		name = ensureMarkdownExt(name)
		if baseName != "" && !strings.HasPrefix(name, baseName) {
			name = baseName + "_" + name
		}
		out = append(out, ParsedFile{Filename: name, Content: f.Content})
	}
	return out
}

func ensureMarkdownExt(name string) string {
	if strings.HasSuffix(name, ".md") {
		return name
	}
	return name + ".md"
}

func stripFenceWrapper(s string) string {
	s = leadingFence.ReplaceAllString(s, "")
	return trailingFence.ReplaceAllString(s, "")
}
