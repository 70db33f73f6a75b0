package report

import (
	"regexp"
	"strings"
	"unicode"
)

type sectionKey int

const (
	keySummary sectionKey = iota
	keyDetailed
	keyStrengths
	keyAreas
	keyRecommendations
)

type heading struct {
	key       sectionKey
	lineStart *regexp.Regexp
	anywhere  *regexp.Regexp

	// enumerative sections read as lists even when written as one line of sentences
	enumerative bool
}

// headings are listed in canonical report order.
var headings = []heading{
	newHeading(keySummary, "Summary", false),
	newHeading(keyDetailed, "Detailed Analysis", false),
	newHeading(keyStrengths, "Strengths", true),
	newHeading(keyAreas, "Areas for Improvement", true),
	newHeading(keyRecommendations, "AI Recommendations", true),
}

func newHeading(key sectionKey, name string, enumerative bool) heading {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(words, `[ \t]+`) + `\b[ \t]*:?`
	return heading{
		key:         key,
		lineStart:   regexp.MustCompile(`(?im)^[ \t#*_>-]*` + expr),
		anywhere:    regexp.MustCompile(`(?i)\b` + expr),
		enumerative: enumerative,
	}
}

// find locates the heading in s, preferring an occurrence that starts a
// line over one embedded in prose. It returns the heading start and the
// offset where its body begins.
func (h heading) find(s string) (start, bodyStart int, ok bool) {
	loc := h.lineStart.FindStringIndex(s)
	if loc == nil {
		loc = h.anywhere.FindStringIndex(s)
	}
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

var (
	segmentSplit = regexp.MustCompile(`(?m)\r?\n|(?:^|[ \t])[-–•*]+[ \t]+`)
	itemPrefix   = regexp.MustCompile(`^(?:\d+[.)]|[-–•*]+)\s*`)
)

const sectionTrim = " \t\r\n*#:_"

// extractSections slices the summary and narrative sections out of text.
// The returned map only holds headings present in the text. A section
// runs until the next heading that comes later in canonical order.
func extractSections(text string) map[sectionKey]*Section {
	out := make(map[sectionKey]*Section)
	for i, h := range headings {
		_, bodyStart, ok := h.find(text)
		if !ok {
			continue
		}

		end := len(text)
		rest := text[bodyStart:]
		for _, later := range headings[i+1:] {
			if start, _, ok := later.find(rest); ok && bodyStart+start < end {
				end = bodyStart + start
			}
		}

		if sec := buildSection(text[bodyStart:end], h.enumerative); sec != nil {
			out[h.key] = sec
		}
	}
	return out
}

func buildSection(raw string, enumerative bool) *Section {
	body := strings.Trim(raw, sectionTrim)
	if body == "" {
		return nil
	}

	items := splitSegments(body)
	if len(items) == 1 {
		body = items[0]
	}
	if len(items) <= 1 && enumerative {
		items = splitSentences(body)
	}
	if len(items) <= 1 {
		items = nil
	}
	return &Section{Text: body, Items: items}
}

// splitSegments splits on line breaks and bullet hyphens. Hyphens inside
// words such as "follow-up" are kept.
func splitSegments(body string) []string {
	var items []string
	for _, part := range segmentSplit.Split(body, -1) {
		part = strings.TrimSpace(itemPrefix.ReplaceAllString(strings.TrimSpace(part), ""))
		part = strings.Trim(part, sectionTrim)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func splitSentences(body string) []string {
	var items []string
	runes := []rune(body)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			items = append(items, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		items = append(items, s)
	}
	return items
}
