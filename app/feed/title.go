package feed

import (
	"golang.org/x/text/unicode/norm"
)

// DisplayTitleLength is the presentation cap for feed titles, including the
// ellipsis marker. Titles are always stored in full.
const DisplayTitleLength = 22

// DisplayTitle truncates a feed title for presentation. The input is
// NFC-normalized first so combining sequences count as single characters.
func DisplayTitle(title string) string {
	normalized := norm.NFC.String(title)
	runes := []rune(normalized)

	if len(runes) <= DisplayTitleLength {
		return normalized
	}

	return string(runes[:DisplayTitleLength-3]) + "..."
}
