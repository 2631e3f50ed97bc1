package model

import "github.com/rotisserie/eris"

// ValidationConfig sweeps the influential count K over [MinInfluential, MaxInfluential].
type ValidationConfig struct {
	MinInfluential  int `json:"min_influential" yaml:"min_influential" validate:"gt=0"`
	MaxInfluential  int `json:"max_influential" yaml:"max_influential" validate:"gtefield=MinInfluential"`
	StepInfluential int `json:"step_influential" yaml:"step_influential" validate:"gt=0"`
	Iterations      int `json:"iterations" yaml:"iterations" validate:"gt=0"`
}

// Validate checks the sweep bounds.
func (v ValidationConfig) Validate() error {
	if err := validate.Struct(v); err != nil {
		return eris.Wrapf(ErrInvalidConfig, "validation: %s", describe(err))
	}
	return nil
}

// Sweep lists K values {min, min+step, ...} not exceeding max.
func (v ValidationConfig) Sweep() []int {
	if v.StepInfluential <= 0 {
		return nil
	}
	var ks []int
	for k := v.MinInfluential; k <= v.MaxInfluential; k += v.StepInfluential {
		ks = append(ks, k)
	}
	return ks
}

// ValidationPoint is one entry of the validation curve.
type ValidationPoint struct {
	Influential int     `json:"influential"`
	Correlation float64 `json:"correlation"`
}
