package entity

import (
	"regexp"
	"strings"
	"unicode"
)

// Extracted is a (name, type) pair produced by ExtractEntities.
type Extracted struct {
	Name string
	Type Type
}

var (
	// pathPattern matches path/name.ext shaped substrings.
	pathPattern = regexp.MustCompile(`\b[\w.-]+(?:/[\w.-]+)+\.[A-Za-z0-9]{1,6}\b`)

	// bareFilePattern matches standalone name.ext tokens.
	bareFilePattern = regexp.MustCompile(`\b[\w-]+\.[A-Za-z]{1,6}\b`)

	// quarterPattern matches quarter labels like Q1 or Q4 2026.
	quarterPattern = regexp.MustCompile(`^[Qq][1-4](\s\d{4})?$`)

	// amountPattern matches currency or magnitude-suffixed numbers.
	amountPattern = regexp.MustCompile(`^[$€£]\d[\d,.]*[kKmMbB]?$|^\d[\d,.]*[kKmMbB]?[$€£%]$`)
)

var codeExtensions = map[string]bool{
	"go": true, "py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"rs": true, "java": true, "kt": true, "swift": true, "c": true, "h": true,
	"cpp": true, "cc": true, "rb": true, "php": true, "cs": true, "sh": true,
	"sql": true, "proto": true,
}

var monthNames = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// ExtractEntities applies text heuristics to find candidate entities:
// capitalized tokens appearing at least twice, file-path shaped substrings,
// function-like tokens, date-like tokens, and amount-like tokens. Everything
// that survives without a more specific type defaults to "concept".
func ExtractEntities(text string) []Extracted {
	if text == "" {
		return nil
	}

	var out []Extracted
	seen := make(map[string]bool)
	add := func(name string, typ Type) {
		key := strings.ToLower(name)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Extracted{Name: name, Type: typ})
	}

	// File paths first so the token walk below doesn't re-classify them.
	for _, m := range pathPattern.FindAllString(text, -1) {
		add(m, fileType(m))
	}
	for _, m := range bareFilePattern.FindAllString(text, -1) {
		ext := strings.ToLower(m[strings.LastIndexByte(m, '.')+1:])
		if codeExtensions[ext] {
			add(m, TypeCodeFile)
		}
	}

	tokens := tokenize(text)

	// Count capitalized tokens; two mentions within one text promote a
	// token to a candidate entity.
	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, tok := range tokens {
		if !isCapitalized(tok) {
			continue
		}
		key := strings.ToLower(tok)
		counts[key]++
		if _, ok := display[key]; !ok {
			display[key] = tok
			order = append(order, key)
		}
	}

	for _, tok := range tokens {
		switch {
		case strings.HasSuffix(tok, "()"):
			add(strings.TrimSuffix(tok, "()"), TypeFunction)
		case quarterPattern.MatchString(tok), monthNames[strings.ToLower(tok)]:
			add(tok, TypeDate)
		case amountPattern.MatchString(tok):
			add(tok, TypeAmount)
		}
	}

	// Concepts are emitted in first-mention order so extraction output is
	// stable across runs.
	for _, key := range order {
		if counts[key] < 2 || seen[key] {
			continue
		}
		add(display[key], TypeConcept)
	}

	return out
}

// fileType classifies a matched file path by extension.
func fileType(path string) Type {
	ext := strings.ToLower(path[strings.LastIndexByte(path, '.')+1:])
	if codeExtensions[ext] {
		return TypeCodeFile
	}
	return TypeFile
}

// tokenize splits text on whitespace and trims surrounding punctuation,
// keeping trailing "()" so function-like tokens stay recognizable.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		isFunc := strings.HasSuffix(strings.TrimRight(f, ".,;:!?"), "()")
		tok := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '$' && r != '%'
		})
		if isFunc {
			tok = strings.TrimRight(f, ".,;:!?")
		}
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func isCapitalized(tok string) bool {
	runes := []rune(tok)
	if len(runes) < 2 {
		return false
	}
	if !unicode.IsUpper(runes[0]) || !unicode.IsLetter(runes[0]) {
		return false
	}
	// All-caps tokens like "OK" or "TODO" are usually noise, not names.
	if strings.ToUpper(tok) == tok {
		return false
	}
	return true
}
