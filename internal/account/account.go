package account

import "time"

// Kind tags a raw record as a post or a comment.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Post is a submission authored by the account.
type Post struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	SelfText      string   `json:"selftext"`
	Subreddit     string   `json:"subreddit"`
	CreatedUTC    float64  `json:"created_utc"`
	URL           string   `json:"url"`
	IsSelf        bool     `json:"is_self"`
	IsVideo       bool     `json:"is_video"`
	Score         int      `json:"score"`
	UpvoteRatio   *float64 `json:"upvote_ratio,omitempty"`
	LinkFlairText *string  `json:"link_flair_text,omitempty"`
}

// Comment is a comment authored by the account.
type Comment struct {
	ID              string  `json:"id"`
	Body            string  `json:"body"`
	Subreddit       string  `json:"subreddit"`
	CreatedUTC      float64 `json:"created_utc"`
	Score           int     `json:"score"`
	AuthorFlairText *string `json:"author_flair_text,omitempty"`
}

// Snapshot is one fetch of an account: metadata plus its posts and comments,
// each kept in fetch order (most recent first). A refresh replaces it whole.
type Snapshot struct {
	Username          string    `json:"username"`
	AccountCreatedUTC float64   `json:"account_created_utc"`
	CommentKarma      int       `json:"comment_karma"`
	LinkKarma         int       `json:"link_karma"`
	HasVerifiedEmail  bool      `json:"has_verified_email"`
	Posts             []Post    `json:"posts"`
	Comments          []Comment `json:"comments"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// CreatedAt returns the account creation time.
func (s *Snapshot) CreatedAt() time.Time {
	sec := int64(s.AccountCreatedUTC)
	nsec := int64((s.AccountCreatedUTC - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// RecordCount returns the number of posts and comments held.
func (s *Snapshot) RecordCount() int {
	return len(s.Posts) + len(s.Comments)
}
