// Package tokenizer turns chunk or query text into an ordered bag of
// lexical terms (spec §4.C): lowercase, code-split, stopword removal, and
// a minimal suffix stemmer, each independently toggleable.
package tokenizer

import (
	"regexp"
	"strings"

	"github.com/emirbartu/terminal-helper/internal/config"
)

// stopwords is the fixed English stopword set named in spec §4.C.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "no": true, "not": true, "of": true,
	"on": true, "or": true, "such": true, "that": true, "the": true,
	"their": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "was": true, "will": true, "with": true,
}

// codeSplitChars are replaced with a space before whitespace-splitting
// when CodeSplit is enabled (spec §4.C).
const codeSplitChars = "{}()[];:,.-+*/%=<>!&|^~"

var blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
var lineCommentSlash = regexp.MustCompile(`//[^\n]*`)
var lineCommentHash = regexp.MustCompile(`#[^\n]*`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// StripComments removes block comments (/*...*/), line comments (// to
// EOL and # to EOL), and collapses whitespace runs to single spaces.
// Index-time tokenization always runs this first (spec §4.C).
func StripComments(text string) string {
	text = blockComment.ReplaceAllString(text, " ")
	text = lineCommentSlash.ReplaceAllString(text, " ")
	text = lineCommentHash.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Tokenize produces an ordered sequence of terms from text under opts.
func Tokenize(text string, opts config.TokenizerConfig) []string {
	if opts.Lowercase {
		text = strings.ToLower(text)
	}

	if opts.CodeSplit {
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if strings.ContainsRune(codeSplitChars, r) {
				b.WriteByte(' ')
			} else {
				b.WriteRune(r)
			}
		}
		text = b.String()
	}

	fields := strings.Fields(text)

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if opts.StopwordRemove && stopwords[tok] {
			continue
		}
		if opts.Stem {
			tok = stem(tok)
		}
		out = append(out, tok)
	}
	return out
}

// stem applies the minimal suffix stripper from spec §4.C: exactly one
// rule fires per token, checked in this order, and only for tokens
// longer than 3 characters.
func stem(tok string) string {
	if len(tok) <= 3 {
		return tok
	}
	switch {
	case strings.HasSuffix(tok, "ing"):
		return tok[:len(tok)-3]
	case strings.HasSuffix(tok, "ed"):
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "ly"):
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "ment"):
		return tok[:len(tok)-4]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss"):
		return tok[:len(tok)-1]
	default:
		return tok
	}
}
