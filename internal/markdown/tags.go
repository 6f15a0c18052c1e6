package markdown

import "regexp"

// tagPattern matches one '#tag' token inside a literal text run. The optional
// trailing whitespace character is part of the match on purpose: a match that
// ends in whitespace is trimmed one character short, while a match that runs
// to the very end of the text keeps the whole token, since the tag may
// continue in a sibling run.
var tagPattern = regexp.MustCompile(`#\S+\s?`)

type tagSpan struct {
	start int // byte offset of '#'
	tag   string
}

// findTags locates every tag token in a literal text run. Both the node-tree
// split points and the payload tag list are derived from the same spans, so
// the two outputs always agree on tag boundaries.
func findTags(text string) []tagSpan {
	locs := tagPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]tagSpan, 0, len(locs))
	for _, loc := range locs {
		raw := text[loc[0]:loc[1]]
		tag := raw[1:]
		if isSpaceByte(tag[len(tag)-1]) {
			tag = tag[:len(tag)-1]
		}
		if tag == "" {
			continue
		}
		spans = append(spans, tagSpan{start: loc[0], tag: tag})
	}
	return spans
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
