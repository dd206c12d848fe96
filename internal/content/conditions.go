package content

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ConditionID identifies a condition card. The set is closed: every id a
// level, session or guess refers to must be one of the constants below.
type ConditionID string

const (
	CommonCold        ConditionID = "common_cold"
	Influenza         ConditionID = "influenza"
	SeasonalAllergy   ConditionID = "seasonal_allergy"
	Migraine          ConditionID = "migraine"
	Gastroenteritis   ConditionID = "gastroenteritis"
	Hypertension      ConditionID = "hypertension"
	Type2Diabetes     ConditionID = "type2_diabetes"
	Asthma            ConditionID = "asthma"
	StrepThroat       ConditionID = "strep_throat"
	Otitis            ConditionID = "otitis"
	Depression        ConditionID = "depression"
	Anxiety           ConditionID = "anxiety"
	LowBackPain       ConditionID = "low_back_pain"
	Arthritis         ConditionID = "arthritis"
	Dermatitis        ConditionID = "dermatitis"
	Pneumonia         ConditionID = "pneumonia"
	ThyroidDisorder   ConditionID = "thyroid_disorder"
	HeartFailure      ConditionID = "heart_failure"
	Anemia            ConditionID = "anemia"
	STI               ConditionID = "sti"
	PulmonaryEmbolism ConditionID = "pulmonary_embolism"
	Stroke            ConditionID = "stroke"
	Meningitis        ConditionID = "meningitis"
	Pancreatitis      ConditionID = "pancreatitis"
	Lupus             ConditionID = "lupus"
	MultipleSclerosis ConditionID = "multiple_sclerosis"
	CrohnsDisease     ConditionID = "crohns_disease"
	Endocarditis      ConditionID = "endocarditis"
	Burnout           ConditionID = "burnout"
	Endometriosis     ConditionID = "endometriosis"
	KidneyStones      ConditionID = "kidney_stones"
	Shingles          ConditionID = "shingles"
	Anaphylaxis       ConditionID = "anaphylaxis"
)

var knownConditions = map[ConditionID]struct{}{}

func init() {
	for _, id := range AllConditionIDs() {
		knownConditions[id] = struct{}{}
	}
}

// AllConditionIDs returns every condition id in declaration order
func AllConditionIDs() []ConditionID {
	return []ConditionID{
		CommonCold, Influenza, SeasonalAllergy, Migraine, Gastroenteritis,
		Hypertension, Type2Diabetes, Asthma, StrepThroat, Otitis,
		Depression, Anxiety, LowBackPain, Arthritis, Dermatitis,
		Pneumonia, ThyroidDisorder, HeartFailure, Anemia, STI,
		PulmonaryEmbolism, Stroke, Meningitis, Pancreatitis, Lupus,
		MultipleSclerosis, CrohnsDisease, Endocarditis, Burnout, Endometriosis,
		KidneyStones, Shingles, Anaphylaxis,
	}
}

// Valid reports whether id belongs to the closed set
func (id ConditionID) Valid() bool {
	_, ok := knownConditions[id]
	return ok
}

func (id ConditionID) String() string {
	return string(id)
}

// UnmarshalText rejects ids outside the closed set, so YAML and JSON
// decoding of content and requests fail on typos.
func (id *ConditionID) UnmarshalText(text []byte) error {
	parsed, err := ParseConditionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnknownConditionError is returned when a string does not name a condition
type UnknownConditionError struct {
	Input      string
	Suggestion ConditionID
}

func (e *UnknownConditionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown condition %q (did you mean %q?)", e.Input, e.Suggestion)
	}
	return fmt.Sprintf("unknown condition %q", e.Input)
}

// ParseConditionID converts free-form input into a ConditionID. Matching is
// exact after trimming and lower-casing; near misses carry a suggestion.
func ParseConditionID(s string) (ConditionID, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	id := ConditionID(normalized)
	if id.Valid() {
		return id, nil
	}
	return "", &UnknownConditionError{Input: s, Suggestion: Suggest(normalized)}
}

// LookupConditionID accepts only a canonical id, byte for byte. Anything else,
// including a differently cased id, is unknown and carries a suggestion.
func LookupConditionID(s string) (ConditionID, error) {
	id := ConditionID(s)
	if id.Valid() {
		return id, nil
	}
	return "", &UnknownConditionError{Input: s, Suggestion: Suggest(s)}
}

// Suggest returns the closest condition id to input, or "" when nothing is
// close enough to be a plausible typo.
func Suggest(input string) ConditionID {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	ids := AllConditionIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	best := ConditionID("")
	bestDistance := suggestionLimit(input) + 1
	for _, id := range ids {
		d := levenshtein.ComputeDistance(input, string(id))
		if d < bestDistance {
			best = id
			bestDistance = d
		}
	}
	return best
}

func suggestionLimit(input string) int {
	switch n := len([]rune(input)); {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}
