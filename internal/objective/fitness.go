// Package objective reduces a tournament's totals to the single number a
// study maximizes.
package objective

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/daihinmin-arena/internal/tally"
)

// CutWeight is how many stock units one cut costs.
const CutWeight = 15

// cutBonus breaks ties between equal penalties in favor of more cuts.
var cutBonus = decimal.New(1, -3)

// Fitness is -(stock + maxCuts*15) + maxCuts*0.001, computed exactly.
func Fitness(stock, maxCuts int) decimal.Decimal {
	cuts := decimal.NewFromInt(int64(maxCuts))
	penalty := decimal.NewFromInt(int64(stock)).Add(cuts.Mul(decimal.NewFromInt(CutWeight)))
	return penalty.Neg().Add(cuts.Mul(cutBonus))
}

// Input is what a reducer sees of one trial.
type Input struct {
	Stats *tally.Stats
	// Target is the tuned entry's record, nil when it never played.
	Target *tally.EntryStats
}

// Reducer turns a trial's totals into a fitness value.
type Reducer interface {
	Reduce(in Input) (decimal.Decimal, error)
}

// Default is the built-in stock/cuts reducer.
type Default struct{}

func (Default) Reduce(in Input) (decimal.Decimal, error) {
	return Fitness(in.Stats.Stock, in.Stats.MaxCuts), nil
}
