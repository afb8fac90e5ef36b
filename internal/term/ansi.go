// Package term cleans raw terminal output for consumers that want
// plain text instead of the exact byte stream a PTY produced.
package term

import "regexp"

var ansiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`),    // CSI sequences
	regexp.MustCompile(`\x1b\].*?(?:\x07|\x1b\\)`),   // OSC (titles, hyperlinks)
	regexp.MustCompile(`\x1bP.*?\x1b\\`),             // DCS
	regexp.MustCompile(`\x1b\^.*?\x1b\\`),            // PM
	regexp.MustCompile(`\x1b_.*?\x1b\\`),             // APC
	regexp.MustCompile(`\x1bk.*?\x1b\\`),             // old-style screen titles
	regexp.MustCompile(`\x1b[()][0-9A-Za-z]`),        // charset selection
	regexp.MustCompile(`\x1b[=>]`),                   // keypad modes
	regexp.MustCompile(`\x1b.`),                      // any leftover escape
}

// StripANSI removes escape sequences and applies carriage returns and
// backspaces, leaving the text a user would actually see. Newlines and
// tabs survive; every other control byte is dropped.
func StripANSI(s string) string {
	for _, re := range ansiPatterns {
		s = re.ReplaceAllString(s, "")
	}

	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\r' {
			continue
		}
		if ch == '\b' {
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
			continue
		}
		if (ch < 0x20 || ch == 0x7f) && ch != '\n' && ch != '\t' {
			continue
		}
		result = append(result, ch)
	}
	return string(result)
}
