package services

import (
	"coopwatch/models"
)

const (
	// FallbackLimit applies when no threshold row can be resolved
	FallbackLimit = 30.0
	// UnknownStage labels evaluations that used FallbackLimit
	UnknownStage = "unknown"
)

// ThresholdEvaluator decides whether a reading breaches the stage limit.
// It holds no mutable state and is safe for concurrent use.
type ThresholdEvaluator struct {
	table models.ThresholdTable
}

func NewThresholdEvaluator(table models.ThresholdTable) *ThresholdEvaluator {
	return &ThresholdEvaluator{table: table}
}

// Evaluate resolves the limit and stage for currentAge and reports whether
// reading is strictly above the limit.
func (te *ThresholdEvaluator) Evaluate(currentAge int, reading float64) (breached bool, limit float64, stage string) {
	limit, stage = te.resolve(currentAge)
	return reading > limit, limit, stage
}

func (te *ThresholdEvaluator) resolve(currentAge int) (float64, string) {
	if currentAge < 0 || len(te.table) == 0 {
		return FallbackLimit, UnknownStage
	}

	found := false
	limit, stage := FallbackLimit, UnknownStage
	for _, row := range te.table {
		if row.FromAge <= currentAge {
			limit, stage = row.Limit, row.Stage
			found = true
		}
	}
	if !found {
		return FallbackLimit, UnknownStage
	}
	return limit, stage
}
