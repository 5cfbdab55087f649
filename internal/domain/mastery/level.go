package mastery

import (
	"fmt"
	"strings"
)

// Level is the discrete proficiency stage derived from a confidence score.
type Level string

const (
	LevelNotStarted Level = "not_started"
	LevelLearning   Level = "learning"
	LevelPracticing Level = "practicing"
	LevelMastered   Level = "mastered"
)

// AllLevels lists levels in ascending order.
var AllLevels = []Level{LevelNotStarted, LevelLearning, LevelPracticing, LevelMastered}

// IsValid checks if the level is one of the known values.
func (l Level) IsValid() bool {
	return l.Rank() >= 0
}

// Rank orders levels: not_started=0 .. mastered=3. Unknown is -1.
func (l Level) Rank() int {
	switch l {
	case LevelNotStarted:
		return 0
	case LevelLearning:
		return 1
	case LevelPracticing:
		return 2
	case LevelMastered:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether l is the same as or above other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// InProgress reports whether the topic is being worked on but not mastered.
func (l Level) InProgress() bool {
	return l == LevelLearning || l == LevelPracticing
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel accepts the snake_case form and the CamelCase form
// ("NotStarted", "Mastered").
func ParseLevel(s string) (Level, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	switch normalized {
	case "notstarted":
		normalized = string(LevelNotStarted)
	}
	l := Level(normalized)
	if !l.IsValid() {
		return "", fmt.Errorf("mastery: unknown level %q", s)
	}
	return l, nil
}
