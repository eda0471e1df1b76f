package quote

import "strings"

// TextResult is the outcome of segmenting a plain-text body.
type TextResult struct {
	MainText   string `json:"mainText"`
	QuotedText string `json:"quotedText"`
}

// ParseTextBody splits a plain-text body into authored and quoted text.
//
// The quoted region starts at the first attribution, banner or ">" line
// and runs through the last ">" line of that block. Attribution lines
// inside the block belong to it. A lone attribution
// with no ">" lines after it quotes only itself. A forwarded banner with
// nothing written above it leaves the whole body as main text; with text
// above it, everything from the banner down is quoted.
func (s *Segmenter) ParseTextBody(body string) TextResult {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	start, last := scanQuotedLines(lines)
	if start < 0 {
		return TextResult{MainText: strings.TrimRightFunc(body, isSpaceLike)}
	}

	end := start + 1
	if IsForwardedHeaderText(lines[start]) {
		if !hasTextBefore(lines, start) {
			return TextResult{MainText: strings.TrimRightFunc(body, isSpaceLike)}
		}
		end = len(lines)
	} else if last >= 0 {
		end = last + 1
	}

	before := strings.Join(lines[:start], "\n")
	after := strings.Join(lines[end:], "\n")
	return TextResult{
		MainText:   strings.TrimFunc(before+"\n"+after, isSpaceLike),
		QuotedText: strings.TrimRightFunc(strings.Join(lines[start:end], "\n"), isSpaceLike),
	}
}

// scanQuotedLines returns the index of the first quote line and of the
// last ">" line of the first quote block, or -1 for each when absent.
func scanQuotedLines(lines []string) (start, last int) {
	start, last = -1, -1
	for i, line := range lines {
		trimmed := strings.TrimFunc(line, isSpaceLike)
		isQuoted := strings.HasPrefix(trimmed, ">")

		switch {
		case isQuoted:
			if start < 0 {
				start = i
			}
			last = i
		case trimmed != "" && IsQuoteHeaderText(trimmed):
			if start < 0 {
				start = i
			}
		case trimmed != "" && start >= 0 && last >= 0:
			return start, last
		}
	}
	return start, last
}

func hasTextBefore(lines []string, index int) bool {
	for _, line := range lines[:index] {
		if !isBlank(line) {
			return true
		}
	}
	return false
}
