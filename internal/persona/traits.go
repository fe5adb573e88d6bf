package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Trait keys in the order they are requested from the model.
const (
	KeyName               = "name"
	KeyAge                = "age"
	KeyOccupation         = "occupation"
	KeyStatus             = "status"
	KeyLocation           = "location"
	KeyTier               = "tier"
	KeyArchetype          = "archetype"
	KeyBehaviourAndHabits = "behaviour_and_habits"
	KeyFrustrations       = "frustrations"
	KeyMotivations        = "motivations"
	KeyPersonality        = "personality"
	KeyGoalsAndNeeds      = "goals_and_needs"
	KeyFeelings           = "feelings"
)

// Feeling categories scored by the model.
const (
	FeelingHappiness  = "happiness"
	FeelingAnger      = "anger"
	FeelingAnxiety    = "anxiety"
	FeelingSadness    = "sadness"
	FeelingConfidence = "confidence"
)

// TraitKeys lists every named trait field, excluding feelings.
var TraitKeys = []string{
	KeyName, KeyAge, KeyOccupation, KeyStatus, KeyLocation, KeyTier, KeyArchetype,
	KeyBehaviourAndHabits, KeyFrustrations, KeyMotivations, KeyPersonality, KeyGoalsAndNeeds,
}

// FeelingCategories lists the fixed feeling categories.
var FeelingCategories = []string{
	FeelingHappiness, FeelingAnger, FeelingAnxiety, FeelingSadness, FeelingConfidence,
}

// RequiredKeys must all be present for a persona to be complete.
var RequiredKeys = []string{KeyName, KeyAge, KeyOccupation, KeyPersonality, KeyFeelings}

// TraitValue holds either a single string or a list of strings and encodes
// back to whichever shape it was decoded from.
type TraitValue struct {
	Text   string
	List   []string
	IsList bool
}

// StringValue returns a scalar trait value.
func StringValue(s string) TraitValue { return TraitValue{Text: s} }

// ListValue returns a list trait value.
func ListValue(items ...string) TraitValue {
	if items == nil {
		items = []string{}
	}
	return TraitValue{List: items, IsList: true}
}

// String renders the value for display; lists are comma separated.
func (v TraitValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

// MarshalJSON implements json.Marshaler.
func (v TraitValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		list := v.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON implements json.Unmarshaler. Anything other than a string or
// an array of strings is rejected.
func (v *TraitValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty trait value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("trait value list must contain only strings: %w", err)
		}
		*v = ListValue(list...)
		return nil
	default:
		return fmt.Errorf("trait value must be a string or a list of strings, got %s", data)
	}
}

// TraitField is a trait as returned by the model, with raw citation quotes.
type TraitField struct {
	Value         TraitValue `json:"value"`
	Justification string     `json:"justification"`
	Citations     []string   `json:"citations"`
}

// FeelingScore is one feeling category as returned by the model.
type FeelingScore struct {
	Score         int      `json:"score"`
	Justification string   `json:"justification"`
	Citations     []string `json:"citations"`
}

// Feelings holds one score per fixed category.
type Feelings struct {
	Happiness  *FeelingScore `json:"happiness"`
	Anger      *FeelingScore `json:"anger"`
	Anxiety    *FeelingScore `json:"anxiety"`
	Sadness    *FeelingScore `json:"sadness"`
	Confidence *FeelingScore `json:"confidence"`
}

// Traits is the parsed model output. Absent optional traits are nil.
type Traits struct {
	Name               *TraitField `json:"name,omitempty"`
	Age                *TraitField `json:"age,omitempty"`
	Occupation         *TraitField `json:"occupation,omitempty"`
	Status             *TraitField `json:"status,omitempty"`
	Location           *TraitField `json:"location,omitempty"`
	Tier               *TraitField `json:"tier,omitempty"`
	Archetype          *TraitField `json:"archetype,omitempty"`
	BehaviourAndHabits *TraitField `json:"behaviour_and_habits,omitempty"`
	Frustrations       *TraitField `json:"frustrations,omitempty"`
	Motivations        *TraitField `json:"motivations,omitempty"`
	Personality        *TraitField `json:"personality,omitempty"`
	GoalsAndNeeds      *TraitField `json:"goals_and_needs,omitempty"`
	Feelings           *Feelings   `json:"feelings,omitempty"`
}

type traitSlot struct {
	key   string
	field **TraitField
}

func (t *Traits) slots() []traitSlot {
	return []traitSlot{
		{KeyName, &t.Name},
		{KeyAge, &t.Age},
		{KeyOccupation, &t.Occupation},
		{KeyStatus, &t.Status},
		{KeyLocation, &t.Location},
		{KeyTier, &t.Tier},
		{KeyArchetype, &t.Archetype},
		{KeyBehaviourAndHabits, &t.BehaviourAndHabits},
		{KeyFrustrations, &t.Frustrations},
		{KeyMotivations, &t.Motivations},
		{KeyPersonality, &t.Personality},
		{KeyGoalsAndNeeds, &t.GoalsAndNeeds},
	}
}

type feelingSlot struct {
	category string
	score    **FeelingScore
}

func (f *Feelings) slots() []feelingSlot {
	return []feelingSlot{
		{FeelingHappiness, &f.Happiness},
		{FeelingAnger, &f.Anger},
		{FeelingAnxiety, &f.Anxiety},
		{FeelingSadness, &f.Sadness},
		{FeelingConfidence, &f.Confidence},
	}
}
