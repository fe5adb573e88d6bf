package persona

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordComplete(t *testing.T) {
	rec := testMerger().Merge(classroomSnapshot(), completeTraits(), Meta{})
	assert.True(t, rec.IsComplete())
	assert.Empty(t, rec.MissingKeys())
}

func TestRecordIncomplete(t *testing.T) {
	rec := testMerger().Merge(classroomSnapshot(), completeTraits(), Meta{})
	rec.Age = nil
	rec.Feelings = nil

	assert.False(t, rec.IsComplete())
	assert.Equal(t, []string{KeyAge, KeyFeelings}, rec.MissingKeys())
}

func TestRecordNilIsIncomplete(t *testing.T) {
	var rec *Record
	assert.False(t, rec.IsComplete())
	assert.Equal(t, RequiredKeys, rec.MissingKeys())
}

func TestRecordDecodedFromStorage(t *testing.T) {
	stored := `{
		"username": "spez",
		"name": {"value": "Unknown", "justification": "", "quotes": [], "citations": []},
		"age": {"value": "30s", "justification": "", "quotes": [], "citations": []},
		"occupation": {"value": "teacher", "justification": "", "quotes": ["x"], "citations": [null]},
		"personality": {"value": ["warm", "curious"], "justification": "", "quotes": [], "citations": []}
	}`
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(stored), &rec))

	assert.False(t, rec.IsComplete())
	assert.Equal(t, []string{KeyFeelings}, rec.MissingKeys())
	assert.Equal(t, []string{"warm", "curious"}, rec.Personality.Value.List)

	resolved, unresolved := rec.CitationStats()
	assert.Equal(t, 0, resolved)
	assert.Equal(t, 1, unresolved)
}

func TestRecordCitationStats(t *testing.T) {
	rec := testMerger().Merge(classroomSnapshot(), completeTraits(), Meta{})

	resolved, unresolved := rec.CitationStats()
	assert.Equal(t, 3, resolved)
	assert.Equal(t, 1, unresolved)
}

func TestRecordTraitLookup(t *testing.T) {
	rec := testMerger().Merge(classroomSnapshot(), completeTraits(), Meta{})

	require.NotNil(t, rec.Trait(KeyOccupation))
	assert.Equal(t, "teacher", rec.Trait(KeyOccupation).Value.String())
	assert.Nil(t, rec.Trait(KeyTier))
	assert.Nil(t, rec.Trait("nonsense"))
}

func TestFeelingSetEachOrder(t *testing.T) {
	rec := testMerger().Merge(classroomSnapshot(), completeTraits(), Meta{})

	var seen []string
	rec.Feelings.Each(func(category string, _ *Feeling) { seen = append(seen, category) })
	assert.Equal(t, FeelingCategories, seen)
}
