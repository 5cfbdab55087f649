package mastery

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Thresholds are the lower confidence bounds of each level above NotStarted.
type Thresholds struct {
	Learning   float64 `toml:"learning"`
	Practicing float64 `toml:"practicing"`
	Mastered   float64 `toml:"mastered"`
}

// Policy holds the tunable constants of the mastery model.
type Policy struct {
	// AssessmentWeight is the weight of a new score in the moving average.
	// The stored confidence keeps 1-AssessmentWeight.
	AssessmentWeight float64 `toml:"assessment_weight"`

	// StudyNudgePerHour is the confidence gained per hour of study.
	StudyNudgePerHour float64 `toml:"study_nudge_per_hour"`

	// StudyNudgeMax caps the gain of a single study session.
	StudyNudgeMax float64 `toml:"study_nudge_max"`

	// DecayWindow is the idle period after which confidence starts to fade.
	DecayWindow time.Duration `toml:"decay_window"`

	// DecayStep is subtracted once per elapsed DecayWindow.
	DecayStep float64 `toml:"decay_step"`

	Thresholds Thresholds `toml:"thresholds"`
}

// DefaultPolicy returns the calibrated defaults.
func DefaultPolicy() Policy {
	return Policy{
		AssessmentWeight:  0.3,
		StudyNudgePerHour: 0.05,
		StudyNudgeMax:     0.05,
		DecayWindow:       30 * 24 * time.Hour,
		DecayStep:         0.1,
		Thresholds: Thresholds{
			Learning:   0.25,
			Practicing: 0.5,
			Mastered:   0.8,
		},
	}
}

// Validate checks that the policy produces bounded, monotonic results.
func (p Policy) Validate() error {
	var errs []error
	if !(p.AssessmentWeight > 0 && p.AssessmentWeight <= 1) {
		errs = append(errs, fmt.Errorf("assessment weight must be in (0,1], got %v", p.AssessmentWeight))
	}
	if p.StudyNudgePerHour < 0 || p.StudyNudgeMax < 0 || p.StudyNudgeMax > 1 {
		errs = append(errs, errors.New("study nudge values must be in [0,1]"))
	}
	if p.DecayWindow <= 0 {
		errs = append(errs, errors.New("decay window must be positive"))
	}
	if p.DecayStep < 0 || p.DecayStep > 1 {
		errs = append(errs, fmt.Errorf("decay step must be in [0,1], got %v", p.DecayStep))
	}
	t := p.Thresholds
	if !(0 < t.Learning && t.Learning < t.Practicing && t.Practicing < t.Mastered && t.Mastered <= 1) {
		errs = append(errs, fmt.Errorf("thresholds must be strictly ascending in (0,1], got %+v", t))
	}
	return errors.Join(errs...)
}

// LevelFor maps a confidence score to its level.
func (p Policy) LevelFor(confidence float64) Level {
	t := p.Thresholds
	switch {
	case confidence >= t.Mastered:
		return LevelMastered
	case confidence >= t.Practicing:
		return LevelPracticing
	case confidence >= t.Learning:
		return LevelLearning
	default:
		return LevelNotStarted
	}
}

// StudyNudge returns the confidence gain for a session of the given length.
func (p Policy) StudyNudge(durationSeconds int64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return math.Min(p.StudyNudgeMax, float64(durationSeconds)/3600*p.StudyNudgePerHour)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
