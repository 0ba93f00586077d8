package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataQuality is returned when input data is too defective to analyze
	ErrDataQuality = errors.New("data quality failure")
	// ErrInvalidScore is returned when a non-positive ESG score reaches weighting
	ErrInvalidScore = errors.New("invalid score")
	// ErrUniverseMismatch is returned when weights and panel disagree on symbols
	ErrUniverseMismatch = errors.New("universe mismatch")
)

// DataQualityError describes an unrecoverable defect in the input data:
// an unfillable column, an empty universe, or a symbol rated on both sides.
type DataQualityError struct {
	Stage  string // pipeline stage that detected the defect
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality failure in %s: %s", e.Stage, e.Reason)
}

func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// InvalidScoreError reports a non-positive ESG score. Scores divide and sign
// the portfolio weights, so zero and negative values cannot be weighted.
type InvalidScoreError struct {
	Symbol string
	Score  float64
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score for %s: %g (must be > 0)", e.Symbol, e.Score)
}

func (e *InvalidScoreError) Is(target error) bool { return target == ErrInvalidScore }

// UniverseMismatchError reports a symbol-set disagreement between the weight
// map and the return panel at compounding time.
type UniverseMismatchError struct {
	OnlyInWeights []string // weighted symbols absent from the panel
	OnlyInPanel   []string // panel columns with no weight
}

func (e *UniverseMismatchError) Error() string {
	var parts []string
	if len(e.OnlyInWeights) > 0 {
		parts = append(parts, fmt.Sprintf("weighted but unpriced: %s", strings.Join(e.OnlyInWeights, ", ")))
	}
	if len(e.OnlyInPanel) > 0 {
		parts = append(parts, fmt.Sprintf("priced but unweighted: %s", strings.Join(e.OnlyInPanel, ", ")))
	}
	return "universe mismatch: " + strings.Join(parts, "; ")
}

func (e *UniverseMismatchError) Is(target error) bool { return target == ErrUniverseMismatch }
