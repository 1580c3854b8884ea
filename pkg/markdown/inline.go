package markdown

import (
	"strings"
)

// writeInline renders span-level markdown in s to HTML. Text outside
// recognized spans is escaped exactly once; entities that are already escaped
// (&amp;, &#39;) pass through untouched.
func writeInline(b *strings.Builder, s string) {
	for i := 0; i < len(s); {
		switch s[i] {
		case '`':
			if end := strings.IndexByte(s[i+1:], '`'); end >= 0 {
				b.WriteString("<code>")
				escapeTo(b, s[i+1:i+1+end])
				b.WriteString("</code>")
				i += end + 2
				continue
			}

		case '!':
			if i+1 < len(s) && s[i+1] == '[' {
				if alt, url, n, ok := linkAt(s[i+1:]); ok {
					b.WriteString(`<img src="`)
					escapeTo(b, url)
					b.WriteString(`" alt="`)
					escapeTo(b, alt)
					b.WriteString(`">`)
					i += 1 + n
					continue
				}
			}

		case '[':
			if text, url, n, ok := linkAt(s[i:]); ok {
				b.WriteString(`<a href="`)
				escapeTo(b, url)
				b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
				writeInline(b, text)
				b.WriteString("</a>")
				i += n
				continue
			}

		case '*':
			if strings.HasPrefix(s[i:], "**") {
				if end := strings.Index(s[i+2:], "**"); end > 0 {
					b.WriteString("<strong>")
					writeInline(b, s[i+2:i+2+end])
					b.WriteString("</strong>")
					i += end + 4
					continue
				}
				// Unclosed bold (usually still streaming): emit both stars.
				b.WriteString("**")
				i += 2
				continue
			}
			if end := italicEnd(s, i); end > 0 {
				b.WriteString("<em>")
				writeInline(b, s[i+1:end])
				b.WriteString("</em>")
				i = end + 1
				continue
			}
		}

		escapeByte(b, s, i)
		i++
	}
}

// italicEnd returns the index of the '*' closing the italic span opened at
// s[open], or -1. The opener must touch a non-space character and the closer
// must not be part of a "**" pair.
func italicEnd(s string, open int) int {
	if open+1 >= len(s) || s[open+1] == ' ' || s[open+1] == '*' {
		return -1
	}
	for j := open + 1; j < len(s); j++ {
		if s[j] != '*' {
			continue
		}
		if j+1 < len(s) && s[j+1] == '*' {
			// Skip over a nested bold pair.
			if end := strings.Index(s[j+2:], "**"); end >= 0 {
				j += end + 3
				continue
			}
			return -1
		}
		if s[j-1] == ' ' {
			continue
		}
		return j
	}
	return -1
}

// linkAt parses "[text](url)" at the start of s and returns the text, the
// url, and the number of bytes consumed.
func linkAt(s string) (string, string, int, bool) {
	if len(s) == 0 || s[0] != '[' {
		return "", "", 0, false
	}
	closeText := strings.Index(s, "](")
	if closeText < 0 {
		return "", "", 0, false
	}
	closeURL := strings.IndexByte(s[closeText+2:], ')')
	if closeURL < 0 {
		return "", "", 0, false
	}
	text := s[1:closeText]
	url := strings.TrimSpace(s[closeText+2 : closeText+2+closeURL])
	if strings.ContainsAny(text, "\n") || !safeURL(url) {
		return "", "", 0, false
	}
	return text, url, closeText + 2 + closeURL + 1, true
}

// safeURL allows http(s), mailto, tel, anchors and relative paths.
func safeURL(url string) bool {
	if url == "" || strings.ContainsAny(url, " \t\"<>") {
		return false
	}
	scheme, _, found := strings.Cut(url, ":")
	if !found || strings.ContainsAny(scheme, "/?#") {
		return true
	}
	switch strings.ToLower(scheme) {
	case "http", "https", "mailto", "tel":
		return true
	}
	return false
}

func escapeTo(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		escapeByte(b, s, i)
	}
}

func escapeByte(b *strings.Builder, s string, i int) {
	switch c := s[i]; c {
	case '&':
		if entityLen(s[i:]) > 0 {
			b.WriteByte('&')
			return
		}
		b.WriteString("&amp;")
	case '<':
		b.WriteString("&lt;")
	case '>':
		b.WriteString("&gt;")
	case '"':
		b.WriteString("&#34;")
	case '\'':
		b.WriteString("&#39;")
	default:
		b.WriteByte(c)
	}
}

// entityLen reports the length of a character reference at the start of s
// ("&amp;", "&#39;", "&#x27;"), or 0.
func entityLen(s string) int {
	if len(s) < 3 || s[0] != '&' {
		return 0
	}
	end := strings.IndexByte(s, ';')
	if end < 2 || end > 10 {
		return 0
	}
	body := s[1:end]
	if body[0] == '#' {
		digits := body[1:]
		hex := false
		if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
			digits = digits[1:]
			hex = true
		}
		if digits == "" {
			return 0
		}
		for _, c := range digits {
			isDigit := c >= '0' && c <= '9'
			isHex := (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isDigit && !(hex && isHex) {
				return 0
			}
		}
		return end + 1
	}
	for _, c := range body {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return 0
		}
	}
	return end + 1
}
