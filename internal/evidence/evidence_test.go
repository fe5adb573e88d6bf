package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/redditpersona/internal/account"
)

func testSnapshot() *account.Snapshot {
	return &account.Snapshot{
		Username: "tester",
		Posts: []account.Post{
			{ID: "p1", Title: "Moving to Berlin", SelfText: "I love my new job as a teacher", Subreddit: "teaching"},
			{ID: "p2", Title: "Title only post", SelfText: "", Subreddit: "berlin"},
			{ID: "p3", Title: "Another", SelfText: "I love my new job as a teacher, again", Subreddit: "jobs"},
		},
		Comments: []account.Comment{
			{ID: "c1", Body: "Coffee keeps me going", Subreddit: "coffee"},
			{ID: "c2", Body: "Coffee keeps me going every morning", Subreddit: "coffee"},
			{ID: "c3", Body: "Title only", Subreddit: "misc"},
		},
	}
}

func TestResolveSinglePostMatch(t *testing.T) {
	l := NewLocator(testSnapshot())

	ref := l.Resolve("Moving to Berlin")
	require.NotNil(t, ref)
	assert.Equal(t, account.KindPost, ref.Type)
	assert.Equal(t, "p1", ref.ID)
	assert.Equal(t, "teaching", ref.Subreddit)
	assert.Equal(t, "I love my new job as a teacher", ref.Text, "selftext is preferred over title")
}

func TestResolveTitleOnlyPostReturnsTitle(t *testing.T) {
	ref := NewLocator(testSnapshot()).Resolve("Title only post")
	require.NotNil(t, ref)
	assert.Equal(t, "p2", ref.ID)
	assert.Equal(t, "Title only post", ref.Text)
}

func TestResolveFirstMatchWins(t *testing.T) {
	l := NewLocator(testSnapshot())

	ref := l.Resolve("I love my new job as a teacher")
	require.NotNil(t, ref)
	assert.Equal(t, "p1", ref.ID)

	ref = l.Resolve("Coffee keeps me going")
	require.NotNil(t, ref)
	assert.Equal(t, account.KindComment, ref.Type)
	assert.Equal(t, "c1", ref.ID)
}

func TestResolvePostsBeforeComments(t *testing.T) {
	// "Title only" appears in post p2's title and in comment c3's body.
	ref := NewLocator(testSnapshot()).Resolve("Title only")
	require.NotNil(t, ref)
	assert.Equal(t, account.KindPost, ref.Type)
	assert.Equal(t, "p2", ref.ID)
}

func TestResolveNoMatch(t *testing.T) {
	assert.Nil(t, NewLocator(testSnapshot()).Resolve("never said this"))
}

func TestResolveIsCaseSensitive(t *testing.T) {
	assert.Nil(t, NewLocator(testSnapshot()).Resolve("coffee keeps me going"))
}

func TestResolveIdempotent(t *testing.T) {
	l := NewLocator(testSnapshot())

	first := l.Resolve("every morning")
	second := l.Resolve("every morning")
	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, Find("every morning", testSnapshot()), first)

	assert.Nil(t, l.Resolve("missing"))
	assert.Nil(t, l.Resolve("missing"))
}

func TestResolveReturnsCopies(t *testing.T) {
	l := NewLocator(testSnapshot())

	ref := l.Resolve("Moving to Berlin")
	require.NotNil(t, ref)
	ref.ID = "mutated"

	again := l.Resolve("Moving to Berlin")
	assert.Equal(t, "p1", again.ID)
}

func TestResolveAllKeepsPositions(t *testing.T) {
	refs := NewLocator(testSnapshot()).ResolveAll([]string{"missing", "Coffee", "Berlin"})
	require.Len(t, refs, 3)
	assert.Nil(t, refs[0])
	assert.Equal(t, "c1", refs[1].ID)
	assert.Equal(t, "p1", refs[2].ID)
}

func TestFindNilSnapshot(t *testing.T) {
	assert.Nil(t, Find("anything", nil))
}
