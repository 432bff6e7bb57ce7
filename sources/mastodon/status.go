package mastodon

import (
	"strings"
	"time"

	"golang.org/x/net/html"
)

// event is one message of the streaming API. For updates the payload is
// the JSON encoding of a Status.
type event struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// Status is a published post.
type Status struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Language  string    `json:"language"`
	// Content is HTML.
	Content string  `json:"content"`
	Account Account `json:"account"`
}

// Account is the author of a status.
type Account struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
}

// Text returns the content as plain text. Paragraphs and line breaks
// become newlines.
func (s Status) Text() string { return PlainText(s.Content) }

// PlainText strips markup from an HTML fragment and unescapes entities.
func PlainText(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "p" {
				b.WriteByte('\n')
			}
		}
	}
}
