package model

// EvaluationPayload is the fixed-schema structured response a simulated
// persona must return. The schema package validates raw model output
// into this shape; it is never populated from unvalidated JSON.
type EvaluationPayload struct {
	FirstImpression string `json:"firstImpression"`

	PersonalContext PersonalContext `json:"personalContext"`

	Benefits        []string `json:"benefits"`
	Concerns        []string `json:"concerns"`
	DecisionFactors []string `json:"decisionFactors"`
	Suggestions     []string `json:"suggestions"`

	TargetAudienceAlignment AudienceAlignment `json:"targetAudienceAlignment"`

	Tags SentimentTags `json:"tags"`
}

// PersonalContext breaks the persona's reaction down along five fixed
// personal dimensions. All five are required; no extra keys are allowed.
type PersonalContext struct {
	RoutineAlignment     string `json:"routineAlignment"`
	FinancialPerspective string `json:"financialPerspective"`
	DigitalComfort       string `json:"digitalComfort"`
	FamilyConsideration  string `json:"familyConsideration"`
	LocationRelevance    string `json:"locationRelevance"`
}

// AudienceAlignment reports how the persona sees itself against the
// test's declared target audience, one field per matcher dimension.
type AudienceAlignment struct {
	AgeMatch           string `json:"ageMatch"`
	LocationMatch      string `json:"locationMatch"`
	IncomeMatch        string `json:"incomeMatch"`
	InterestOverlap    string `json:"interestOverlap"`
	PainPointRelevance string `json:"painPointRelevance"`
}

// SentimentTags buckets free-form takeaways. Exactly these three
// buckets exist; a payload introducing others fails validation.
type SentimentTags struct {
	Positive    []string `json:"positive"`
	Negative    []string `json:"negative"`
	Opportunity []string `json:"opportunity"`
}
