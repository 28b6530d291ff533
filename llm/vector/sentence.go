package vector

import (
	"strings"
	"unicode"
)

// abbreviations that end with a period without closing a sentence
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "inc": {}, "ltd": {},
	"co": {}, "corp": {}, "no": {}, "fig": {}, "approx": {}, "dept": {},
}

// splitSentences splits text into trimmed sentences. Terminal punctuation
// closes a sentence when followed by whitespace or the end of text; CJK
// punctuation always closes one. A blank line is also a boundary.
func splitSentences(text string) []string {
	runes := []rune(text)
	n := len(runes)

	var sentences []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < n; i++ {
		r := runes[i]

		if r == '\n' {
			j := i + 1
			for j < n && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\r') {
				j++
			}
			if j < n && runes[j] == '\n' {
				flush(i)
			}
			continue
		}

		if !isSentenceEnd(r) {
			continue
		}

		j := i + 1
		for j < n && isSentenceEnd(runes[j]) {
			j++
		}
		for j < n && isCloser(runes[j]) {
			j++
		}

		switch {
		case isFullWidthEnd(r):
		case j < n && !unicode.IsSpace(runes[j]):
			i = j - 1
			continue
		case r == '.' && j == i+1 && endsWithAbbreviation(runes[start:i]):
			continue
		}

		flush(j)
		i = j - 1
	}

	flush(n)
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isFullWidthEnd(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』', '）':
		return true
	}
	return false
}

// endsWithAbbreviation reports whether the word right before a period is a
// known abbreviation or a single capital initial.
func endsWithAbbreviation(prefix []rune) bool {
	i := len(prefix)
	for i > 0 && (unicode.IsLetter(prefix[i-1]) || prefix[i-1] == '.') {
		i--
	}
	word := string(prefix[i:])
	if word == "" {
		return false
	}
	if w := []rune(word); len(w) == 1 && unicode.IsUpper(w[0]) {
		return true
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}
