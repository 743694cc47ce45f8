package services

import (
	"regexp"
	"strings"
)

// Inbound reply bodies arrive as either plain text or HTML, with the
// sender's mail client appending quoted history. These helpers reduce a
// body to just the text the customer actually typed.

var (
	brTagRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe  = regexp.MustCompile(`(?i)</(div|p)>`)
	gmailQuoteRe  = regexp.MustCompile(`(?is)<div[^>]*class="gmail_quote.*`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	excessLinesRe = regexp.MustCompile(`\n{3,}`)

	quoteMarkers = []*regexp.Regexp{
		regexp.MustCompile(`^On\s+.+\s+wrote:`),
		regexp.MustCompile(`^-{3,}\s*Original Message\s*-{3,}`),
		regexp.MustCompile(`^Sent from my (iPhone|Android)`),
	}
)

// LooksLikeHTML reports whether a mail body is HTML rather than plain text
func LooksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<") ||
		strings.Contains(trimmed, "<div") ||
		strings.Contains(trimmed, "<html")
}

// HTMLToText converts an HTML mail body to plain text. Gmail's quoted
// history container is cut off before tags are stripped, since the quote
// markers inside it are unreachable once it is flattened.
func HTMLToText(body string) string {
	text := brTagRe.ReplaceAllString(body, "\n")
	text = blockCloseRe.ReplaceAllString(text, "\n")
	text = gmailQuoteRe.ReplaceAllString(text, "")
	text = htmlTagRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")

	text = excessLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// StripQuotedText removes quoted reply history from plain text. Reading
// stops at the first attribution marker or quote-prefixed line; anything
// below is quoted history, even unprefixed lines.
func StripQuotedText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if isQuoteMarker(trimmed) || strings.HasPrefix(trimmed, ">") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isQuoteMarker(line string) bool {
	for _, re := range quoteMarkers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// ExtractReplyText reduces an inbound mail body to the newly written
// text. A plain text body that strips down to nothing is returned as is,
// so an unusual client never produces an empty ticket note.
func ExtractReplyText(body string) string {
	if LooksLikeHTML(body) {
		return StripQuotedText(HTMLToText(body))
	}
	text := StripQuotedText(body)
	if text == "" {
		return strings.TrimSpace(body)
	}
	return text
}
