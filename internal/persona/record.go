package persona

import (
	"time"

	"github.com/TobiSchelling/redditpersona/internal/evidence"
)

// Trait is a resolved trait. Quotes keeps the model's raw citations and
// Citations[i] is the source of Quotes[i], or nil if it could not be found.
type Trait struct {
	Value         TraitValue      `json:"value"`
	Justification string          `json:"justification"`
	Quotes        []string        `json:"quotes"`
	Citations     []*evidence.Ref `json:"citations"`
}

// Feeling is a resolved feeling score.
type Feeling struct {
	Score         int             `json:"score"`
	Justification string          `json:"justification"`
	Quotes        []string        `json:"quotes"`
	Citations     []*evidence.Ref `json:"citations"`
}

// FeelingSet holds one resolved feeling per category.
type FeelingSet struct {
	Happiness  *Feeling `json:"happiness,omitempty"`
	Anger      *Feeling `json:"anger,omitempty"`
	Anxiety    *Feeling `json:"anxiety,omitempty"`
	Sadness    *Feeling `json:"sadness,omitempty"`
	Confidence *Feeling `json:"confidence,omitempty"`
}

// Each calls fn for every scored category in fixed order.
func (f *FeelingSet) Each(fn func(category string, feeling *Feeling)) {
	if f == nil {
		return
	}
	for _, e := range []struct {
		category string
		feeling  *Feeling
	}{
		{FeelingHappiness, f.Happiness},
		{FeelingAnger, f.Anger},
		{FeelingAnxiety, f.Anxiety},
		{FeelingSadness, f.Sadness},
		{FeelingConfidence, f.Confidence},
	} {
		if e.feeling != nil {
			fn(e.category, e.feeling)
		}
	}
}

// Record is a persona: account metadata merged with resolved traits.
type Record struct {
	Username       string `json:"username"`
	LinkKarma      int    `json:"link_karma"`
	CommentKarma   int    `json:"comment_karma"`
	AccountAgeDays int    `json:"account_age_days"`

	Name               *Trait      `json:"name,omitempty"`
	Age                *Trait      `json:"age,omitempty"`
	Occupation         *Trait      `json:"occupation,omitempty"`
	Status             *Trait      `json:"status,omitempty"`
	Location           *Trait      `json:"location,omitempty"`
	Tier               *Trait      `json:"tier,omitempty"`
	Archetype          *Trait      `json:"archetype,omitempty"`
	BehaviourAndHabits *Trait      `json:"behaviour_and_habits,omitempty"`
	Frustrations       *Trait      `json:"frustrations,omitempty"`
	Motivations        *Trait      `json:"motivations,omitempty"`
	Personality        *Trait      `json:"personality,omitempty"`
	GoalsAndNeeds      *Trait      `json:"goals_and_needs,omitempty"`
	Feelings           *FeelingSet `json:"feelings,omitempty"`

	AnalysisID  string    `json:"analysis_id,omitempty"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

type recordSlot struct {
	key   string
	trait **Trait
}

func (r *Record) slots() []recordSlot {
	return []recordSlot{
		{KeyName, &r.Name},
		{KeyAge, &r.Age},
		{KeyOccupation, &r.Occupation},
		{KeyStatus, &r.Status},
		{KeyLocation, &r.Location},
		{KeyTier, &r.Tier},
		{KeyArchetype, &r.Archetype},
		{KeyBehaviourAndHabits, &r.BehaviourAndHabits},
		{KeyFrustrations, &r.Frustrations},
		{KeyMotivations, &r.Motivations},
		{KeyPersonality, &r.Personality},
		{KeyGoalsAndNeeds, &r.GoalsAndNeeds},
	}
}

// Trait returns the trait stored under key, or nil.
func (r *Record) Trait(key string) *Trait {
	for _, s := range r.slots() {
		if s.key == key {
			return *s.trait
		}
	}
	return nil
}

// MissingKeys returns the required keys the record lacks.
func (r *Record) MissingKeys() []string {
	if r == nil {
		return append([]string(nil), RequiredKeys...)
	}
	var missing []string
	for _, key := range RequiredKeys {
		if key == KeyFeelings {
			if r.Feelings == nil {
				missing = append(missing, key)
			}
			continue
		}
		if r.Trait(key) == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsComplete reports whether the record holds every required key and can be
// served without re-analysis.
func (r *Record) IsComplete() bool {
	return r != nil && len(r.MissingKeys()) == 0
}

// CitationStats counts resolved and unresolved citations across all traits
// and feelings.
func (r *Record) CitationStats() (resolved, unresolved int) {
	count := func(refs []*evidence.Ref) {
		for _, ref := range refs {
			if ref != nil {
				resolved++
			} else {
				unresolved++
			}
		}
	}
	for _, s := range r.slots() {
		if t := *s.trait; t != nil {
			count(t.Citations)
		}
	}
	r.Feelings.Each(func(_ string, f *Feeling) { count(f.Citations) })
	return resolved, unresolved
}
