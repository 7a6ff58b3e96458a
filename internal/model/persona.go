package model

// Persona is a simulated respondent profile. It drives exactly one LLM
// agent per test run.
//
// Personas are immutable for the duration of a run: the runner treats
// them as read-only input and never writes them back.
type Persona struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Age          int    `json:"age" yaml:"age"`
	Occupation   string `json:"occupation" yaml:"occupation"`
	Income       string `json:"income" yaml:"income"`
	Location     string `json:"location" yaml:"location"`
	FamilyStatus string `json:"family_status" yaml:"family_status"`
	Education    string `json:"education" yaml:"education"`

	// Psychographics.
	DailyRoutine      string   `json:"daily_routine" yaml:"daily_routine"`
	Challenges        []string `json:"challenges" yaml:"challenges"`
	Goals             []string `json:"goals" yaml:"goals"`
	Frustrations      []string `json:"frustrations" yaml:"frustrations"`
	Interests         []string `json:"interests" yaml:"interests"`
	Habits            []string `json:"habits" yaml:"habits"`
	DigitalSkillLevel string   `json:"digital_skill_level" yaml:"digital_skill_level"`
	SpendingHabits    string   `json:"spending_habits" yaml:"spending_habits"`
	DecisionFactors   []string `json:"decision_factors" yaml:"decision_factors"`
	PersonalityTraits []string `json:"personality_traits" yaml:"personality_traits"`
	BackgroundStory   string   `json:"background_story" yaml:"background_story"`

	// Traits holds free-form attributes that have no dedicated field.
	Traits map[string]string `json:"traits,omitempty" yaml:"traits,omitempty"`
}
