// Package premium prices deposits from an asset's recorded history.
//
// The risk model is a deliberate proxy: a subject's multiplier grows by ten
// percentage points per historical record. Any RiskOracle returning the same
// percentage semantics (100 = baseline) can replace it.
package premium

import (
	"context"
	"math/bits"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

const (
	// BaselineMultiplier is the percentage multiplier of a subject with no history.
	BaselineMultiplier uint64 = 100
	// PerRecordMultiplier is added for every historical record.
	PerRecordMultiplier uint64 = 10
)

// RiskOracle returns a percentage multiplier for subject.
type RiskOracle interface {
	RiskMultiplier(ctx context.Context, subject id.SubjectID) (uint64, error)
}

// HistoryReader is the slice of the asset registry the history oracle needs.
type HistoryReader interface {
	HistoryLength(ctx context.Context, subject id.SubjectID) (uint64, error)
}

// HistoryOracle derives the multiplier from the subject's record count.
type HistoryOracle struct {
	history HistoryReader
}

func NewHistoryOracle(history HistoryReader) *HistoryOracle {
	return &HistoryOracle{history: history}
}

func (o *HistoryOracle) RiskMultiplier(ctx context.Context, subject id.SubjectID) (uint64, error) {
	n, err := o.history.HistoryLength(ctx, subject)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset history")
	}
	hi, extra := bits.Mul64(n, PerRecordMultiplier)
	sum, carry := bits.Add64(BaselineMultiplier, extra, 0)
	if hi != 0 || carry != 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "risk multiplier overflows")
	}
	return sum, nil
}

// Calculator computes premiums as basePremium × multiplier / 100, rounding down.
type Calculator struct {
	oracle RiskOracle
	base   uint64
}

func NewCalculator(oracle RiskOracle, basePremium uint64) *Calculator {
	return &Calculator{oracle: oracle, base: basePremium}
}

func (c *Calculator) BasePremium() uint64 {
	return c.base
}

func (c *Calculator) RiskMultiplier(ctx context.Context, subject id.SubjectID) (uint64, error) {
	return c.oracle.RiskMultiplier(ctx, subject)
}

func (c *Calculator) Premium(ctx context.Context, subject id.SubjectID) (uint64, error) {
	multiplier, err := c.oracle.RiskMultiplier(ctx, subject)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(c.base, multiplier)
	if hi >= 100 {
		return 0, dErrors.New(dErrors.CodeValidation, "premium overflows")
	}
	q, _ := bits.Div64(hi, lo, 100)
	return q, nil
}
