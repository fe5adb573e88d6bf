package reddit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/TobiSchelling/redditpersona/internal/account"
)

// FeedSource reads an account's recent history from its public Atom feeds.
// Account metadata still comes from the about endpoint. Feeds carry no
// scores, so Score fields are zero.
type FeedSource struct {
	client *Client
	parser *gofeed.Parser
}

// NewFeedSource creates a feed-backed source that shares c's HTTP settings.
func NewFeedSource(c *Client) *FeedSource {
	return &FeedSource{client: c, parser: gofeed.NewParser()}
}

// FetchSnapshot implements the pipeline source contract over feeds.
func (f *FeedSource) FetchSnapshot(ctx context.Context, username string) (*account.Snapshot, error) {
	about, err := f.client.about(ctx, username)
	if err != nil {
		return nil, err
	}

	postItems, err := f.items(ctx, username, "submitted")
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	commentItems, err := f.items(ctx, username, "comments")
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	posts := make([]account.Post, 0, len(postItems))
	for _, item := range postItems {
		posts = append(posts, feedPost(item))
	}
	comments := make([]account.Comment, 0, len(commentItems))
	for _, item := range commentItems {
		comments = append(comments, feedComment(item))
	}

	f.client.logger.Info("fetched account from feeds",
		"username", username,
		"posts", len(posts),
		"comments", len(comments))

	return &account.Snapshot{
		Username:          username,
		AccountCreatedUTC: about.CreatedUTC,
		CommentKarma:      about.CommentKarma,
		LinkKarma:         about.LinkKarma,
		HasVerifiedEmail:  about.HasVerifiedEmail,
		Posts:             posts,
		Comments:          comments,
		FetchedAt:         time.Now().UTC(),
	}, nil
}

// items pages through one of the account's feeds with the after cursor
// until the configured limit is reached or the feed runs dry.
func (f *FeedSource) items(ctx context.Context, username, kind string) ([]*gofeed.Item, error) {
	var items []*gofeed.Item
	after := ""
	for len(items) < f.client.cfg.Limit {
		pageSize := min(f.client.cfg.Limit-len(items), maxPageSize)
		page, err := f.page(ctx, username, kind, pageSize, after)
		if err != nil {
			return nil, err
		}
		if len(page) > pageSize {
			page = page[:pageSize]
		}
		items = append(items, page...)

		// A short page is the end of the feed. An unchanged cursor means
		// the server ignored after and would repeat the same page.
		if len(page) < pageSize {
			break
		}
		next := page[len(page)-1].GUID
		if next == "" || next == after {
			break
		}
		after = next
	}
	return items, nil
}

func (f *FeedSource) page(ctx context.Context, username, kind string, limit int, after string) ([]*gofeed.Item, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if after != "" {
		params.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/user/%s/%s/.rss?%s",
		strings.TrimRight(f.client.cfg.PublicURL, "/"), url.PathEscape(username), kind, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit feed request: %w", err)
	}
	req.Header.Set("User-Agent", f.client.cfg.UserAgent)

	resp, err := f.client.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit feed request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s feed returned %d", ErrNotFound, kind, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("reddit feed HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed.Items, nil
}

func feedPost(item *gofeed.Item) account.Post {
	text := contentText(item.Content, item.Link)
	// Post entries end with a "submitted by /u/x [link] [comments]" footer.
	if i := strings.LastIndex(text, "submitted by"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return account.Post{
		ID:         thingID(item.GUID),
		Title:      strings.TrimSpace(item.Title),
		SelfText:   text,
		Subreddit:  feedSubreddit(item),
		CreatedUTC: feedTime(item),
		URL:        item.Link,
		IsSelf:     text != "",
	}
}

func feedComment(item *gofeed.Item) account.Comment {
	return account.Comment{
		ID:         thingID(item.GUID),
		Body:       contentText(item.Content, item.Link),
		Subreddit:  feedSubreddit(item),
		CreatedUTC: feedTime(item),
	}
}

// thingID strips the type prefix from a fullname such as t3_abc123.
func thingID(guid string) string {
	if len(guid) > 3 && guid[0] == 't' && guid[2] == '_' {
		return guid[3:]
	}
	return guid
}

func feedSubreddit(item *gofeed.Item) string {
	if len(item.Categories) > 0 {
		return strings.TrimPrefix(item.Categories[0], "r/")
	}
	return ""
}

func feedTime(item *gofeed.Item) float64 {
	switch {
	case item.PublishedParsed != nil:
		return float64(item.PublishedParsed.Unix())
	case item.UpdatedParsed != nil:
		return float64(item.UpdatedParsed.Unix())
	default:
		return 0
	}
}

// contentText extracts readable text from an entry's HTML body, falling back
// to plain tag stripping when readability finds nothing.
func contentText(content, link string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	pageURL, _ := url.Parse(link)
	if article, err := readability.FromReader(strings.NewReader(content), pageURL); err == nil {
		if text := strings.Join(strings.Fields(article.TextContent), " "); text != "" {
			return text
		}
	}
	return stripTags(content)
}

func stripTags(content string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
