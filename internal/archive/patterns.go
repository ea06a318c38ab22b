package archive

import (
	"regexp"
	"strings"
)

const (
	// IndexSuffix identifies the side-index entry of an archive.
	IndexSuffix = "index.htm"

	// PageSuffix identifies chapter pages.
	PageSuffix = ".htm"

	// KeywordSentinel is a marker token that may lead a keyword list.
	KeywordSentinel = "Audio"

	keywordDelimiter = ", "
)

var (
	// IndexLinePattern captures (groupId, displayName) from a side-index line.
	IndexLinePattern = regexp.MustCompile(`^.*title="\[(\d+).*>([- A-Za-z0-9]+)<.*$`)

	// SynopsisPatterns are tried in order against each page line.
	SynopsisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^.*<title>Audio.Books:.*\d{1,3}.(.+)<.*$`),
		regexp.MustCompile(`^.*<title>(.*), .*<.*$`),
	}

	// KeywordsPattern captures the content of a keywords meta line.
	KeywordsPattern = regexp.MustCompile(`^.*<meta name="keywords" content="(.*)".*$`)
)

// splitLines splits text on newlines, dropping a trailing carriage return.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// MatchSynopsis returns the trimmed synopsis carried by line, if any.
func MatchSynopsis(line string) (string, bool) {
	for _, p := range SynopsisPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// MatchKeywords returns the keyword list carried by line, if any. A leading
// sentinel token is dropped. Tokens are returned untrimmed.
func MatchKeywords(line string) ([]string, bool) {
	m := KeywordsPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	tokens := strings.Split(m[1], keywordDelimiter)
	if len(tokens) > 0 && tokens[0] == KeywordSentinel {
		tokens = tokens[1:]
	}
	kept := tokens[:0]
	for _, tok := range tokens {
		if strings.TrimSpace(tok) != "" {
			kept = append(kept, tok)
		}
	}
	return kept, true
}
