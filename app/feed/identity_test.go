package feed

import (
	"testing"
)

func TestDeriveIDDeterministic(t *testing.T) {
	inputs := []string{
		"https://example.com/feed.xml",
		"https://example.com/feed.xml?page=2",
		"https://news.example.org/rss",
		"",
	}

	for _, input := range inputs {
		first := DeriveID(input)
		second := DeriveID(input)
		if first != second {
			t.Errorf("DeriveID(%q) not deterministic: %s != %s", input, first, second)
		}
		if first == "" {
			t.Errorf("DeriveID(%q) returned empty ID", input)
		}
	}
}

func TestDeriveIDDistinct(t *testing.T) {
	a := DeriveID("https://example.com/feed.xml")
	b := DeriveID("https://example.com/other.xml")
	if a == b {
		t.Errorf("Expected distinct IDs for distinct inputs, both: %s", a)
	}
}

func TestDeriveIDArticleFallback(t *testing.T) {
	// An article without its own link derives its ID from the parent feed's
	// source URL, so it collides with the feed-derived ID by design and stays
	// stable across refreshes.
	feedURL := "https://example.com/feed.xml"
	if DeriveID(feedURL) != DeriveID(feedURL) {
		t.Error("Fallback-derived IDs must be stable")
	}
}
