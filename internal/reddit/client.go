package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TobiSchelling/redditpersona/internal/account"
)

const (
	DefaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultOAuthURL  = "https://oauth.reddit.com"
	DefaultPublicURL = "https://www.reddit.com"
	DefaultUserAgent = "redditpersona/0.1"
	DefaultLimit     = 100

	// Reddit caps a listing page at 100 items.
	maxPageSize = 100
)

// ErrNotFound is returned when the account does not exist or is suspended.
var ErrNotFound = errors.New("reddit account not found")

// Config configures a Client. Empty URLs fall back to the public endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Limit        int
	Timeout      time.Duration

	AuthURL   string
	OAuthURL  string
	PublicURL string
}

// Client reads an account's public history. With app credentials it uses
// application-only OAuth, otherwise the unauthenticated .json endpoints.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Reddit client. A nil logger discards output.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = DefaultOAuthURL
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// IsAuthenticated returns whether app credentials are configured.
func (c *Client) IsAuthenticated() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// FetchSnapshot reads the account metadata plus its most recent posts and
// comments, newest first, each capped at the configured limit.
func (c *Client) FetchSnapshot(ctx context.Context, username string) (*account.Snapshot, error) {
	about, err := c.about(ctx, username)
	if err != nil {
		return nil, err
	}

	posts, err := fetchListing(ctx, c, username, "submitted", decodePost)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	comments, err := fetchListing(ctx, c, username, "comments", decodeComment)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	c.logger.Info("fetched account",
		"username", username,
		"posts", len(posts),
		"comments", len(comments),
		"oauth", c.IsAuthenticated())

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

type aboutData struct {
	Name             string  `json:"name"`
	CreatedUTC       float64 `json:"created_utc"`
	CommentKarma     int     `json:"comment_karma"`
	LinkKarma        int     `json:"link_karma"`
	HasVerifiedEmail bool    `json:"has_verified_email"`
	IsSuspended      bool    `json:"is_suspended"`
}

func (c *Client) about(ctx context.Context, username string) (*aboutData, error) {
	var result struct {
		Kind string    `json:"kind"`
		Data aboutData `json:"data"`
	}
	if err := c.get(ctx, "/user/"+url.PathEscape(username)+"/about", nil, &result); err != nil {
		return nil, err
	}
	if result.Data.IsSuspended || result.Data.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return &result.Data, nil
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func fetchListing[T any](ctx context.Context, c *Client, username, kind string, decode func(json.RawMessage) (T, error)) ([]T, error) {
	items := []T{}
	after := ""
	for len(items) < c.cfg.Limit {
		pageSize := min(c.cfg.Limit-len(items), maxPageSize)
		params := url.Values{
			"limit":    {strconv.Itoa(pageSize)},
			"sort":     {"new"},
			"raw_json": {"1"},
		}
		if after != "" {
			params.Set("after", after)
		}

		var page listing
		if err := c.get(ctx, "/user/"+url.PathEscape(username)+"/"+kind, params, &page); err != nil {
			return nil, err
		}
		for _, child := range page.Data.Children {
			item, err := decode(child.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", child.Kind, err)
			}
			items = append(items, item)
			if len(items) == c.cfg.Limit {
				break
			}
		}
		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}
	return items, nil
}

func decodePost(data json.RawMessage) (account.Post, error) {
	var p account.Post
	err := json.Unmarshal(data, &p)
	return p, err
}

func decodeComment(data json.RawMessage) (account.Comment, error) {
	var cm account.Comment
	err := json.Unmarshal(data, &cm)
	return cm, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	var endpoint string
	var bearer string
	if c.IsAuthenticated() {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		endpoint = strings.TrimRight(c.cfg.OAuthURL, "/") + path
		bearer = token
	} else {
		endpoint = strings.TrimRight(c.cfg.PublicURL, "/") + path + ".json"
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("reddit request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrNotFound, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode reddit response: %w", err)
	}
	return nil
}

// accessToken returns a cached application-only token, refreshing it a
// minute before it expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: HTTP %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token request rejected: %s", result.Error)
	}

	c.token = result.AccessToken
	c.expires = time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}
