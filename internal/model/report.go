package model

import "fmt"

// Sensitivity method names reported alongside each index.
const (
	MethodSpearman         = "Spearman correlations"
	MethodGradientBoosting = "Gradient boosting"
)

// LinearityPoint is one entry of the linearity curve: the sum of squared standardized
// regression coefficients fitted on the first Iterations samples.
type LinearityPoint struct {
	Iterations int     `json:"iterations"`
	Statistic  float64 `json:"statistic"`
}

// SensitivityRow is one ranked parameter of a sensitivity report.
type SensitivityRow struct {
	Rank         int            `json:"rank"`
	Parameter    ParameterIndex `json:"parameter"`
	Provenance   Provenance     `json:"provenance"`
	Index        float64        `json:"index"`
	Contribution float64        `json:"contribution"`
	Method       string         `json:"method"`
}

// AmountDisplay formats the exchange amount the way the dashboard table shows it.
func (r SensitivityRow) AmountDisplay() string {
	return fmt.Sprintf("%4.2e %s", r.Provenance.ExchangeAmount, r.Provenance.ExchangeUnit)
}

// SensitivityReport is the derived result of an analysis pass.
type SensitivityReport struct {
	// Score is the deterministic impact of the study, every parameter at its static amount.
	Score     float64          `json:"score"`
	Unit      string           `json:"unit"`
	Linearity []LinearityPoint `json:"linearity"`
	Method    string           `json:"method"`
	Rows      []SensitivityRow `json:"rows"`
}
