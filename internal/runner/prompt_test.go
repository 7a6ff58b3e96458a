package runner

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/synthpanel/synthpanel/internal/match"
	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/schema"
	"github.com/synthpanel/synthpanel/internal/testutil"
)

func promptGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// TestComposeSystem_Golden pins the persona framing text.
func TestComposeSystem_Golden(t *testing.T) {
	system := composeSystem(testutil.SamplePersona("p1"))
	promptGoldie(t).Assert(t, "persona_system", []byte(system))
}

// TestComposePrompt_Golden pins the evaluation prompt text, alignment
// hints included.
func TestComposePrompt_Golden(t *testing.T) {
	test := testutil.SampleTest("t1", "p1")
	persona := testutil.SamplePersona("p1")
	hints := match.Score(persona, test.Audience)

	prompt := composePrompt(test, persona, hints)
	promptGoldie(t).Assert(t, "evaluation_prompt", []byte(prompt))
}

// TestComposeSystem_SparsePersona tests that empty fields leave no
// stray lines behind.
func TestComposeSystem_SparsePersona(t *testing.T) {
	system := composeSystem(model.Persona{
		ID:       "p9",
		Name:     "Alex",
		Age:      28,
		Location: "Lisbon",
	})

	assert.Contains(t, system, "You are Alex, 28, a person living in Lisbon.")
	assert.NotContains(t, system, "Family:")
	assert.NotContains(t, system, "Interests:")
	assert.Contains(t, system, "Stay in character.")
}

// TestComposeSystem_TraitsAreSorted tests deterministic ordering of
// free-form traits.
func TestComposeSystem_TraitsAreSorted(t *testing.T) {
	p := model.Persona{
		Name:       "Alex",
		Age:        28,
		Occupation: "engineer",
		Location:   "Lisbon",
		Traits: map[string]string{
			"Pet preference": "cats",
			"Commute":        "bicycle",
		},
	}

	first := composeSystem(p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, composeSystem(p))
	}
	assert.Contains(t, first, "Commute: bicycle.\nPet preference: cats.")
}

// TestComposePrompt_DefaultsLanguageToEnglish tests the unsupported
// language fallback in the rendered instruction.
func TestComposePrompt_DefaultsLanguageToEnglish(t *testing.T) {
	test := testutil.SampleTest("t1", "p1")
	test.Language = "xx-klingon"

	prompt := composePrompt(test, testutil.SamplePersona("p1"), model.AlignmentHints{})
	assert.Contains(t, prompt, "Write every text value in English.")
}

// TestComposePrompt_SubjectNounPerType tests the research framing for
// each test type.
func TestComposePrompt_SubjectNounPerType(t *testing.T) {
	persona := testutil.SamplePersona("p1")

	test := testutil.SampleTest("t1", "p1")
	test.Type = model.TestTypeMessage
	assert.Contains(t, composePrompt(test, persona, model.AlignmentHints{}),
		"researching the following message:")

	test.Type = model.TestTypeJourney
	assert.Contains(t, composePrompt(test, persona, model.AlignmentHints{}),
		"researching the following customer journey:")
}

// TestCorrectiveInstruction tests that the retry instruction carries
// the violation detail.
func TestCorrectiveInstruction(t *testing.T) {
	err := &schema.ValidationError{Kind: schema.ErrMissingKey, Path: "$.tags", Message: "required key is missing"}
	got := correctiveInstruction(err)

	assert.Contains(t, got, "Your previous answer was rejected: MISSING_KEY at $.tags: required key is missing.")
	assert.Contains(t, got, "no missing keys and no extra keys")
}
