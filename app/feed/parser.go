package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Parser fetches a feed URL and normalizes the parsed result into a
// Document. Failures are per-source: a Parser error never carries state
// across calls.
type Parser struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
	timeout      time.Duration
}

func NewParser(httpClient *http.Client, userAgent string, timeout time.Duration) *Parser {
	return &Parser{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
		timeout:      timeout,
	}
}

// Parse fetches url and parses the body into a normalized Document. An
// unreachable URL or a malformed document fails this single source only.
func (p *Parser) Parse(ctx context.Context, url string) (*Document, error) {
	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	doc := &Document{
		Meta: Meta{
			Title:       parsed.Title,
			Link:        parsed.Link,
			Description: parsed.Description,
			XMLURL:      url,
		},
	}

	now := time.Now().UTC()
	doc.Posts = make([]Post, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		doc.Posts = append(doc.Posts, p.normalizePost(item, now))
	}

	return doc, nil
}

func (p *Parser) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// normalizePost flattens parser quirks into the uniform post shape: content
// falls back to the description, the publish timestamp falls back to fetch
// time, and author variants collapse into one normalized list.
func (p *Parser) normalizePost(item *gofeed.Item, fallbackTime time.Time) Post {
	post := Post{
		Title:   item.Title,
		Link:    item.Link,
		Content: cmp.Or(item.Content, item.Description),
	}

	if item.PublishedParsed != nil {
		post.PublishedAt = *item.PublishedParsed
	} else {
		post.PublishedAt = fallbackTime
	}

	post.Authors = extractAuthors(item)

	return post
}

func extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if s := formatAuthor(author.Name, author.Email); s != "" {
					authors = append(authors, s)
				}
			}
		}
	} else if item.Author != nil {
		if s := formatAuthor(item.Author.Name, item.Author.Email); s != "" {
			authors = append(authors, s)
		}
	}

	return authors
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
