package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/local/sheetmd/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Materializer writes parsed files under one output directory.
type Materializer struct {
	OutputDir string
}

// Write persists every parsed file and returns the created paths. Filenames
// are flattened to the output directory; if two entries normalize to the same
// name within a run the second write overwrites the first (accepted risk, the
// base-name prefix makes it rare).
func (m Materializer) Write(files []ParsedFile) ([]string, error) {
	if err := os.MkdirAll(m.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	created := make([]string, 0, len(files))
	for _, f := range files {
		name := SanitizeName(f.Filename)
		path := filepath.Join(m.OutputDir, name)
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return created, fmt.Errorf("write %s: %w", name, err)
		}
		created = append(created, path)
		metrics.IncFileWritten()
		log.Info().Str("file", name).Msg("markdown file created")
	}
	return created, nil
}

// SanitizeName makes a model- or sheet-derived name safe as a flat filename.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		string(os.PathSeparator), "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)
	if name == "" || name == ".md" {
		name = "output.md"
	}
	return name
}
