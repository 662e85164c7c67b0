// Package queryexpand extracts error-specific cues — messages, stack
// frame symbols, filenames, call expressions, import names — from a raw
// error log or natural-language query, and folds them back onto the
// query text for both BM25 and vector search (spec §4.G).
package queryexpand

import (
	"regexp"
	"strings"

	"github.com/emirbartu/terminal-helper/internal/tokenizer"
)

// messagePatterns extract capturing-group 1 of a labeled error message
// (spec §4.G, case-insensitive).
var messagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)exception:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)failed:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)cannot\s+([^:]+)`),
	regexp.MustCompile(`(?i)undefined\s+([^:]+)`),
	regexp.MustCompile(`(?i)null\s+([^:]+)`),
}

// The patterns below extract every occurrence of a structural code cue (spec §4.G).
var (
	stackFramePattern = regexp.MustCompile(`at\s+([\w$.]+)\s`)
	callExprPattern    = regexp.MustCompile(`([A-Za-z0-9_]+)\(.*\)`)
	importPattern      = regexp.MustCompile(`import\s+([A-Za-z0-9_{}]+)`)
	requirePattern     = regexp.MustCompile(`require\(['"](.*)['"]\)`)
)

// filenamePattern's extension list mirrors the File Walker's recognized extension set (spec
// §4.A) so a traceback's filename mentions are captured the same way.
var filenamePattern = regexp.MustCompile(
	`[\w./\\-]+\.(?:js|jsx|ts|tsx|py|java|c|cc|cpp|cxx|h|hpp|go|rb|php|cs|scala|swift|rs|kt|kts|sh|bash|sql)\b`,
)

// Expand returns the enriched query: the original text plus every
// captured cue, space-separated, then run through the code preprocessor
// (comment stripping and whitespace collapse), per spec §4.G.
func Expand(rawQuery string) string {
	var cues []string

	for _, p := range messagePatterns {
		for _, m := range p.FindAllStringSubmatch(rawQuery, -1) {
			if len(m) > 1 {
				cues = append(cues, strings.TrimSpace(m[1]))
			}
		}
	}

	for _, m := range stackFramePattern.FindAllStringSubmatch(rawQuery, -1) {
		cues = append(cues, m[1])
	}
	for _, m := range filenamePattern.FindAllString(rawQuery, -1) {
		cues = append(cues, m)
	}
	for _, m := range callExprPattern.FindAllStringSubmatch(rawQuery, -1) {
		cues = append(cues, m[1])
	}
	for _, m := range importPattern.FindAllStringSubmatch(rawQuery, -1) {
		cues = append(cues, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(rawQuery, -1) {
		cues = append(cues, m[1])
	}

	enriched := rawQuery
	if len(cues) > 0 {
		enriched = rawQuery + " " + strings.Join(cues, " ")
	}
	return tokenizer.StripComments(enriched)
}

// MatchingFilenames returns the basenames of supported-extension
// filenames mentioned in rawQuery, used by the root-cause boost (spec
// §4.H) to test membership against a result's metadata.FileName.
func MatchingFilenames(rawQuery string) map[string]bool {
	out := make(map[string]bool)
	for _, m := range filenamePattern.FindAllString(rawQuery, -1) {
		out[baseName(m)] = true
	}
	return out
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
