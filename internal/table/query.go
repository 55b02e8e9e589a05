package table

import "github.com/xtding233/dicepool-tables/internal/dice"

// Query asks how likely a roll is to meet a target number.
// Each called raise adds dice.RaiseStep to the target; Modifier is added to
// the rolled total, so it lowers the effective target.
type Query struct {
	Config       dice.RollConfig
	TargetNumber int
	CalledRaises int
	Modifier     int
}

// EffectiveTN is the threshold the unmodified roll has to reach.
func (q Query) EffectiveTN() int {
	return q.TargetNumber + dice.RaiseStep*q.CalledRaises - q.Modifier
}

// Answer carries the matched entry and the success probability.
type Answer struct {
	Entry       *Entry  `json:"table"`
	SuccessRate float64 `json:"success_rate"`
	EffectiveTN int     `json:"effective_tn"`
}

// Answer resolves q against the document.
func (d *Document) Answer(q Query) (Answer, error) {
	e, err := d.Lookup(q.Config)
	if err != nil {
		return Answer{}, err
	}
	tn := q.EffectiveTN()
	p, err := e.AtLeast(tn)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Entry: e, SuccessRate: p, EffectiveTN: tn}, nil
}
