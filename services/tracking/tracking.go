package tracking

import "strings"

// IsAuthentic reports whether a post carries the creator's tracking tag. A
// blank tag means no verification is required. Otherwise the tag must appear
// in the caption (case-insensitive substring) or equal one of the hashtags,
// ignoring case and a leading '#'.
func IsAuthentic(tag, caption string, hashtags []string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return true
	}

	if strings.Contains(strings.ToLower(caption), strings.ToLower(tag)) {
		return true
	}

	want := normalize(tag)
	if want == "" {
		return true
	}
	for _, h := range hashtags {
		if normalize(h) == want {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}
