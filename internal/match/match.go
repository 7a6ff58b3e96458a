// Package match scores personas against a test's declared target
// audience.
//
// Score is a pure function: the same persona/audience pair always
// produces the same hints, and nothing here touches the network,
// storage, or the clock. The hints are short natural-language notes
// that steer the evaluation prompt and are echoed back in the result
// for traceability.
package match

import (
	"fmt"
	"strings"

	"github.com/synthpanel/synthpanel/internal/model"
)

// Score compares a persona to the target audience along five fixed
// dimensions: age, location, income, interest overlap, and pain-point
// relevance.
func Score(p model.Persona, a model.TargetAudience) model.AlignmentHints {
	return model.AlignmentHints{
		Age:       ageHint(p, a),
		Location:  locationHint(p, a),
		Income:    incomeHint(p, a),
		Interests: interestHint(p, a),
		PainPoint: painPointHint(p, a),
	}
}

func ageHint(p model.Persona, a model.TargetAudience) string {
	if a.AgeMin == 0 && a.AgeMax == 0 {
		return fmt.Sprintf("no target age range declared; persona is %d", p.Age)
	}
	if p.Age >= a.AgeMin && (a.AgeMax == 0 || p.Age <= a.AgeMax) {
		return fmt.Sprintf("age %d falls inside the target range %d-%d", p.Age, a.AgeMin, a.AgeMax)
	}
	return fmt.Sprintf("age %d falls outside the target range %d-%d", p.Age, a.AgeMin, a.AgeMax)
}

func locationHint(p model.Persona, a model.TargetAudience) string {
	if a.Location == "" {
		return "no target location declared"
	}
	if containsFold(p.Location, a.Location) || containsFold(a.Location, p.Location) {
		return fmt.Sprintf("lives in %s, matching the target location %s", p.Location, a.Location)
	}
	return fmt.Sprintf("lives in %s, outside the target location %s", p.Location, a.Location)
}

func incomeHint(p model.Persona, a model.TargetAudience) string {
	if a.Income == "" {
		return "no target income bracket declared"
	}
	if strings.EqualFold(strings.TrimSpace(p.Income), strings.TrimSpace(a.Income)) {
		return fmt.Sprintf("income %s matches the target bracket", p.Income)
	}
	return fmt.Sprintf("income %s differs from the target bracket %s", p.Income, a.Income)
}

func interestHint(p model.Persona, a model.TargetAudience) string {
	shared := intersect(a.Interests, p.Interests)
	if len(a.Interests) == 0 {
		return "no target interests declared"
	}
	if len(shared) == 0 {
		return "no overlap with the target interests"
	}
	return fmt.Sprintf("shares %d of %d target interests: %s",
		len(shared), len(a.Interests), strings.Join(shared, ", "))
}

func painPointHint(p model.Persona, a model.TargetAudience) string {
	// Persona-side pain points live in challenges and frustrations.
	personal := append(append([]string{}, p.Challenges...), p.Frustrations...)
	shared := intersect(a.PainPoints, personal)
	if len(a.PainPoints) == 0 {
		return "no target pain points declared"
	}
	if len(shared) == 0 {
		return "none of the target pain points appear in the persona's challenges or frustrations"
	}
	return fmt.Sprintf("feels %d of %d target pain points: %s",
		len(shared), len(a.PainPoints), strings.Join(shared, ", "))
}

// intersect returns the elements of want that appear in have,
// preserving want's declaration order. Comparison is case-insensitive
// and substring-tolerant in both directions.
func intersect(want, have []string) []string {
	var out []string
	for _, w := range want {
		for _, h := range have {
			if containsFold(h, w) || containsFold(w, h) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
