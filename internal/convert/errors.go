package convert

import (
	"fmt"
	"strings"
)

// ErrorEntry records one conversion failure in the per-run report. File holds
// the input file name, optionally suffixed with " - <sheet>" for per-sheet
// failures.
type ErrorEntry struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

// friendlyMessage collapses common upstream failures into short, stable
// strings for the report. Anything unrecognized passes through verbatim.
func friendlyMessage(model string, err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "api_key_invalid"):
		return "API key is not valid."
	case strings.Contains(lower, "quota"), strings.Contains(lower, "429"), strings.Contains(lower, "resource_exhausted"):
		return "Quota exceeded or requests sent too quickly."
	case strings.Contains(lower, "not found") && strings.Contains(lower, "model"):
		return fmt.Sprintf("Model '%s' does not exist or is not supported.", model)
	}
	return msg
}
