package logging

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{6,}\d`)
	// dateRe matches ISO dates with an optional clock time; they are never
	// treated as phone numbers, nor glued to one.
	dateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?`)
)

// minPhoneDigits keeps short numbers such as prices out of phone scrubbing.
const minPhoneDigits = 9

// ScrubPII replaces emails with [email] and phone numbers with [phone] in
// free text such as log lines shipped by the booking form.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[email]")

	var b strings.Builder
	last := 0
	for _, loc := range dateRe.FindAllStringIndex(text, -1) {
		b.WriteString(scrubPhones(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(scrubPhones(text[last:]))
	return b.String()
}

func scrubPhones(text string) string {
	return phoneRe.ReplaceAllStringFunc(text, func(match string) string {
		if countDigits(match) < minPhoneDigits {
			return match
		}
		return "[phone]"
	})
}

// ScrubValue applies ScrubPII to every string inside a decoded JSON value.
// Numbers long enough to be phone numbers are replaced as well.
func ScrubValue(v any) any {
	switch val := v.(type) {
	case string:
		return ScrubPII(val)
	case float64:
		if s := strconv.FormatFloat(val, 'f', -1, 64); ScrubPII(s) != s {
			return "[phone]"
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ScrubValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ScrubValue(item)
		}
		return out
	default:
		return v
	}
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}
