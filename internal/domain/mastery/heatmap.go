package mastery

import "time"

// Cell is the per-topic detail behind a heatmap level.
type Cell struct {
	Level           Level      `json:"level"`
	Confidence      float64    `json:"confidence"`
	AttemptCount    int        `json:"attempt_count"`
	StudySeconds    int64      `json:"study_seconds"`
	LastPracticedAt *time.Time `json:"last_practiced_at,omitempty"`
}

// Summary counts topics by state.
type Summary struct {
	TotalTopics      int `json:"total_topics"`
	MasteredTopics   int `json:"mastered_topics"`
	InProgressTopics int `json:"in_progress_topics"`
}

// Heatmap maps subject -> topic -> level, with per-cell detail alongside.
type Heatmap struct {
	Subjects map[string]map[string]Level `json:"subjects"`
	Details  map[string]map[string]Cell  `json:"details"`
	Summary  Summary                     `json:"summary"`

	// BuiltAt is the instant the levels were decayed to.
	BuiltAt time.Time `json:"built_at"`
}

// BuildHeatmap decays each record as of now and groups the result by
// subject. When subjectFilter is non-empty only that subject is included.
// Zero records give an empty, non-nil mapping.
func (p Policy) BuildHeatmap(records []Record, subjectFilter string, now time.Time) Heatmap {
	h := Heatmap{
		Subjects: make(map[string]map[string]Level),
		Details:  make(map[string]map[string]Cell),
		BuiltAt:  now.UTC(),
	}

	for _, rec := range records {
		if subjectFilter != "" && rec.Subject != subjectFilter {
			continue
		}
		d := p.Decay(rec, now)

		if h.Subjects[d.Subject] == nil {
			h.Subjects[d.Subject] = make(map[string]Level)
			h.Details[d.Subject] = make(map[string]Cell)
		}
		h.Subjects[d.Subject][d.Topic] = d.Level
		h.Details[d.Subject][d.Topic] = Cell{
			Level:           d.Level,
			Confidence:      d.Confidence,
			AttemptCount:    d.AttemptCount,
			StudySeconds:    d.StudySeconds,
			LastPracticedAt: d.LastPracticedAt,
		}

		h.Summary.TotalTopics++
		switch {
		case d.Level == LevelMastered:
			h.Summary.MasteredTopics++
		case d.Level.InProgress():
			h.Summary.InProgressTopics++
		}
	}

	return h
}
