// Package moderation masks blacklisted words in message content before it is
// persisted or fanned out to a session.
package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	relayerrors "chat-relay/errors"
)

//go:embed wordlists/*.txt
var wordlists embed.FS

type Moderator struct {
	matcher  *goahocorasick.Machine
	maskRune rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized word list.
func NewModerator(words []string, maskRune rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, relayerrors.ErrInvalidArgument
	}
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if n := normalize(w); len(n) > 0 {
			patterns = append(patterns, n)
		}
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, maskRune: maskRune}, nil
}

// NewEmbeddedModerator loads the word lists shipped with the binary.
func NewEmbeddedModerator(maskRune rune) (*Moderator, error) {
	words, err := loadWordlists()
	if err != nil {
		return nil, err
	}
	return NewModerator(words, maskRune)
}

// Censor replaces every character of a matched word with the mask rune while
// leaving surrounding punctuation and spacing untouched.
func (m *Moderator) Censor(original string) string {
	runes := []rune(original)
	norm, origIdx := normalizeMapped(runes)
	if len(norm) == 0 {
		return original
	}
	spans := m.matcher.MultiPatternSearch(norm, false)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			runes[i] = m.maskRune
		}
	}
	return string(runes)
}

// normalizeMapped lowercases and strips separators, keeping for each kept rune
// the index it had in the original text so matches can be masked in place.
func normalizeMapped(original []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(original))
	origIdx := make([]int, 0, len(original))
	for i, r := range original {
		if isNoise(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func normalize(word string) []rune {
	out := make([]rune, 0, len(word))
	for _, r := range word {
		if isNoise(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func isNoise(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '*'
}

// loadWordlists reads every embedded list. One file per language, one word per
// line, '#' lines are comments.
func loadWordlists() ([]string, error) {
	entries, err := fs.ReadDir(wordlists, "wordlists")
	if err != nil {
		return nil, err
	}
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := wordlists.ReadFile("wordlists/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			unique[strings.ToLower(line)] = struct{}{}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	return words, nil
}
