package runner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/schema"
)

// composeSystem renders the persona framing: who the model is supposed
// to be while answering.
func composeSystem(p model.Persona) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, %d, %s living in %s.\n", p.Name, p.Age, indefinite(p.Occupation), p.Location)
	if p.FamilyStatus != "" {
		fmt.Fprintf(&b, "Family: %s.\n", p.FamilyStatus)
	}
	if p.Education != "" {
		fmt.Fprintf(&b, "Education: %s.\n", p.Education)
	}
	if p.Income != "" {
		fmt.Fprintf(&b, "Income: %s.\n", p.Income)
	}
	if p.DailyRoutine != "" {
		fmt.Fprintf(&b, "Daily routine: %s\n", p.DailyRoutine)
	}
	writeList(&b, "Challenges", p.Challenges)
	writeList(&b, "Goals", p.Goals)
	writeList(&b, "Frustrations", p.Frustrations)
	writeList(&b, "Interests", p.Interests)
	writeList(&b, "Habits", p.Habits)
	if p.DigitalSkillLevel != "" {
		fmt.Fprintf(&b, "Digital skill level: %s.\n", p.DigitalSkillLevel)
	}
	if p.SpendingHabits != "" {
		fmt.Fprintf(&b, "Spending habits: %s.\n", p.SpendingHabits)
	}
	writeList(&b, "Decision factors", p.DecisionFactors)
	writeList(&b, "Personality", p.PersonalityTraits)
	if p.BackgroundStory != "" {
		fmt.Fprintf(&b, "Background: %s\n", p.BackgroundStory)
	}
	for _, kv := range sortedTraits(p.Traits) {
		fmt.Fprintf(&b, "%s: %s.\n", kv[0], kv[1])
	}

	b.WriteString("Stay in character. React as this person would, not as an analyst.")
	return b.String()
}

// composePrompt renders the evaluation task: the subject under test,
// the alignment hints, and the output contract.
func composePrompt(t *model.Test, p model.Persona, hints model.AlignmentHints) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A company is researching the following %s:\n\n%s\n\n", subjectNoun(t.Type), t.Objective)

	b.WriteString("How you relate to their intended audience:\n")
	fmt.Fprintf(&b, "- Age: %s\n", hints.Age)
	fmt.Fprintf(&b, "- Location: %s\n", hints.Location)
	fmt.Fprintf(&b, "- Income: %s\n", hints.Income)
	fmt.Fprintf(&b, "- Interests: %s\n", hints.Interests)
	fmt.Fprintf(&b, "- Pain points: %s\n\n", hints.PainPoint)

	style := t.Settings.InteractionStyle
	if style == "" {
		style = "candid"
	}
	fmt.Fprintf(&b, "Give your %s reaction as %s.\n", style, p.Name)

	lang := model.ResolveLanguage(t.Language)
	fmt.Fprintf(&b, "Write every text value in %s.\n\n", model.LanguageName(lang))

	b.WriteString("Respond with a single JSON object and nothing else. ")
	b.WriteString("It must contain exactly the keys of the provided schema: ")
	b.WriteString("firstImpression, personalContext (routineAlignment, financialPerspective, digitalComfort, familyConsideration, locationRelevance), ")
	b.WriteString("benefits, concerns, decisionFactors, suggestions, ")
	b.WriteString("targetAudienceAlignment (ageMatch, locationMatch, incomeMatch, interestOverlap, painPointRelevance), ")
	b.WriteString("and tags (positive, negative, opportunity). No additional keys.")

	return b.String()
}

// correctiveInstruction turns a validation error into the retry
// instruction appended to the prompt.
func correctiveInstruction(err error) string {
	var detail string
	if ve, ok := err.(*schema.ValidationError); ok {
		detail = ve.Error()
	} else if err != nil {
		detail = err.Error()
	}
	return fmt.Sprintf(
		"Your previous answer was rejected: %s. Return a single valid JSON object that follows the schema exactly, with no missing keys and no extra keys.",
		detail,
	)
}

func subjectNoun(t model.TestType) string {
	switch t {
	case model.TestTypeMessage:
		return "message"
	case model.TestTypeJourney:
		return "customer journey"
	default:
		return "product"
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s.\n", label, strings.Join(items, "; "))
}

// sortedTraits returns free-form traits as key/value pairs in key
// order, so prompt composition is deterministic.
func sortedTraits(traits map[string]string) [][2]string {
	if len(traits) == 0 {
		return nil
	}
	keys := make([]string, 0, len(traits))
	for k := range traits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, traits[k]})
	}
	return out
}

// indefinite prefixes an occupation with a/an.
func indefinite(s string) string {
	if s == "" {
		return "a person"
	}
	switch strings.ToLower(s)[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + s
	default:
		return "a " + s
	}
}
