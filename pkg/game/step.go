// Package game resolves the random events of a step: experience gain,
// item discovery and (reserved) encounters.
package game

import "github.com/crystal-mush/swordsanddeath/pkg/gamedb"

// Outcome is the kind of event a step produced.
type Outcome int

const (
	OutcomeExp Outcome = iota
	OutcomeItem
	OutcomeEncounter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExp:
		return "exp"
	case OutcomeItem:
		return "item"
	case OutcomeEncounter:
		return "encounter"
	default:
		return "unknown"
	}
}

// RollStep draws the outcome of a step: 80% experience, 10% item and 10%
// encounter.
func RollStep(r Random) Outcome {
	switch n := r.Intn(100); {
	case n < 80:
		return OutcomeExp
	case n < 90:
		return OutcomeItem
	default:
		return OutcomeEncounter
	}
}

// StepResult describes what happened on one step.
type StepResult struct {
	Outcome      Outcome
	ExpGained    uint32
	LevelsGained uint32
	Item         *gamedb.Item // set for OutcomeItem
}

// Step advances p by one step. It increments the step counter and applies
// the rolled outcome to p in place; a found item is returned but not stored.
func Step(r Random, p *gamedb.Player) StepResult {
	p.Steps++
	res := StepResult{Outcome: RollStep(r)}
	switch res.Outcome {
	case OutcomeExp:
		res.ExpGained = RollExp(r)
		p.Level, p.Exp, res.LevelsGained = ApplyExp(p.Level, p.Exp, res.ExpGained)
	case OutcomeItem:
		res.Item = RandomItem(r, p.ID, p.Level)
	}
	return res
}
