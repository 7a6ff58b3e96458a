package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/synthpanel/synthpanel/internal/model"
)

// ValidEvaluationJSON returns a canonical payload that passes schema
// validation. Tests mutate copies of it to build invalid fixtures.
func ValidEvaluationJSON() []byte {
	return []byte(`{
		"firstImpression": "Looks genuinely useful for someone like me.",
		"personalContext": {
			"routineAlignment": "Fits between school drop-off and work.",
			"financialPerspective": "Affordable on my budget if it replaces the old tool.",
			"digitalComfort": "Simple enough, I use apps like this daily.",
			"familyConsideration": "My partner would want to share the account.",
			"locationRelevance": "Delivery to my area matters most."
		},
		"benefits": ["saves time", "one place for everything"],
		"concerns": ["subscription fatigue"],
		"decisionFactors": ["price", "trial period"],
		"suggestions": ["add a family plan"],
		"targetAudienceAlignment": {
			"ageMatch": "I am squarely in the stated range.",
			"locationMatch": "I live in the target city.",
			"incomeMatch": "My income is at the low end of the bracket.",
			"interestOverlap": "Two of my hobbies overlap.",
			"painPointRelevance": "The scheduling pain point is exactly mine."
		},
		"tags": {
			"positive": ["convenient"],
			"negative": ["pricing unclear"],
			"opportunity": ["family plan"]
		}
	}`)
}

// MutateJSON applies fn to a decoded copy of raw and re-encodes it.
// Panics on malformed fixtures; only tests call this.
func MutateJSON(raw []byte, fn func(obj map[string]any)) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		panic(fmt.Sprintf("testutil: bad fixture: %v", err))
	}
	fn(obj)
	out, err := json.Marshal(obj)
	if err != nil {
		panic(fmt.Sprintf("testutil: re-encode fixture: %v", err))
	}
	return out
}

// SamplePersona returns a fully populated persona for prompt and
// matcher tests. Deterministic: no randomness, fixed field values.
func SamplePersona(id string) model.Persona {
	return model.Persona{
		ID:                id,
		Name:              "Maria Oliveira",
		Age:               34,
		Occupation:        "nurse",
		Income:            "R$4.000-6.000",
		Location:          "São Paulo",
		FamilyStatus:      "married, two children",
		Education:         "nursing degree",
		DailyRoutine:      "Early shifts at the clinic, school runs, errands after work.",
		Challenges:        []string{"no free time", "rising cost of living"},
		Goals:             []string{"save for an apartment", "more family time"},
		Frustrations:      []string{"apps that waste my time"},
		Interests:         []string{"cooking", "running", "podcasts"},
		Habits:            []string{"shops online at night"},
		DigitalSkillLevel: "intermediate",
		SpendingHabits:    "careful, compares prices",
		DecisionFactors:   []string{"price", "recommendations"},
		PersonalityTraits: []string{"pragmatic", "warm"},
		BackgroundStory:   "Grew up in Campinas, moved to São Paulo for work.",
	}
}

// SampleTest returns a draft test targeting the sample persona's
// demographic, referencing the given persona IDs.
func SampleTest(id string, personaIDs ...string) *model.Test {
	return &model.Test{
		ID:         id,
		Type:       model.TestTypeProduct,
		Language:   "pt-BR",
		Status:     model.StatusDraft,
		Objective:  "A meal-planning app that builds weekly grocery lists from family recipes.",
		PersonaIDs: personaIDs,
		Audience: model.TargetAudience{
			AgeMin:     25,
			AgeMax:     45,
			Location:   "São Paulo",
			Income:     "R$4.000-6.000",
			Interests:  []string{"cooking", "fitness"},
			PainPoints: []string{"no free time"},
			Needs:      []string{"simpler weekly planning"},
		},
		Settings: model.TestSettings{
			MaxIterations:    1,
			ResponseFormat:   "structured_json",
			InteractionStyle: "candid",
		},
	}
}
