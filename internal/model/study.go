package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// ErrInvalidConfig is returned when a study or simulation configuration fails validation.
var ErrInvalidConfig = eris.New("invalid configuration")

var validate = validator.New()

// StudyConfig identifies what is being analyzed: a functional unit scored with an impact method.
// It is immutable once a cache directory has been derived from it.
type StudyConfig struct {
	Project  string  `json:"project" yaml:"project" validate:"required"`
	Database string  `json:"database" yaml:"database" validate:"required"`
	Activity string  `json:"activity" yaml:"activity" validate:"required"`
	Amount   float64 `json:"amount" yaml:"amount" validate:"required,gt=0"`
	Method   string  `json:"method" yaml:"method" validate:"required"`
}

// ActivityName splits the activity identifier "<name>, <location>" on its last separator.
func (s StudyConfig) ActivityName() (name, location string) {
	i := strings.LastIndex(s.Activity, ", ")
	if i < 0 {
		return s.Activity, ""
	}
	return s.Activity[:i], s.Activity[i+2:]
}

// MethodKey splits the method identifier "a, b, c" into its tuple parts.
func (s StudyConfig) MethodKey() []string {
	return strings.Split(s.Method, ", ")
}

// AmountString is the shortest round-trip form of the functional amount.
func (s StudyConfig) AmountString() string {
	return strconv.FormatFloat(s.Amount, 'g', -1, 64)
}

// Validate checks that every field is set.
func (s StudyConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrapf(ErrInvalidConfig, "study: %s", describe(err))
	}
	return nil
}

// SimulationConfig controls a Monte Carlo run.
type SimulationConfig struct {
	Iterations int   `json:"iterations" yaml:"iterations" validate:"gt=0"`
	ChunkSize  int   `json:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
	Seed       int64 `json:"seed" yaml:"seed"`
}

// Validate checks iteration and chunk bounds.
func (s SimulationConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrapf(ErrInvalidConfig, "simulation: %s", describe(err))
	}
	return nil
}

// NumChunks is ceil(Iterations / ChunkSize).
func (s SimulationConfig) NumChunks() int {
	if s.ChunkSize <= 0 {
		return 0
	}
	return (s.Iterations + s.ChunkSize - 1) / s.ChunkSize
}

// ChunkLen is the number of draws in chunk i: min(C, N - i*C), or 0 when out of range.
func (s SimulationConfig) ChunkLen(i int) int {
	if i < 0 || i >= s.NumChunks() {
		return 0
	}
	return min(s.ChunkSize, s.Iterations-i*s.ChunkSize)
}

// DirName names the run directory for this configuration.
func (s SimulationConfig) DirName() string {
	return fmt.Sprintf("iterations%d_chunksize%d_seed%d", s.Iterations, s.ChunkSize, s.Seed)
}

// RunConfig couples a study with a simulation; it maps 1:1 to a run directory.
type RunConfig struct {
	Study      StudyConfig      `json:"study" yaml:"study"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
}

// Validate validates both halves.
func (r RunConfig) Validate() error {
	if err := r.Study.Validate(); err != nil {
		return err
	}
	return r.Simulation.Validate()
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !eris.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
