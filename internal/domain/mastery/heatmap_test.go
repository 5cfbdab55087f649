package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

func rec(subject, topic string, conf float64, last *time.Time) Record {
	p := DefaultPolicy()
	r := NewRecord("user-1", shared.TopicKey{Subject: subject, Topic: topic}, t0)
	r.Confidence = conf
	r.Level = p.LevelFor(conf)
	r.LastPracticedAt = last
	return r
}

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func TestBuildHeatmap_Empty(t *testing.T) {
	h := DefaultPolicy().BuildHeatmap(nil, "", t0)
	require.NotNil(t, h.Subjects)
	assert.Empty(t, h.Subjects)
	assert.Equal(t, Summary{}, h.Summary)
	assert.True(t, h.BuiltAt.Equal(t0))
}

func TestBuildHeatmap_GroupsAndDecays(t *testing.T) {
	p := DefaultPolicy()
	now := t0.Add(45 * 24 * time.Hour)
	records := []Record{
		rec("Math", "Algebra", 0.85, at(0)),                      // decays one step to practicing
		rec("Math", "Geometry", 0.3, at(40*24*time.Hour)),        // recent, stays learning
		rec("Physics", "Optics", 0.9, at(44*24*time.Hour)),       // mastered
		rec("Physics", "Mechanics", 0.1, nil),                    // never practiced
	}

	h := p.BuildHeatmap(records, "", now)

	assert.Equal(t, map[string]map[string]Level{
		"Math":    {"Algebra": LevelPracticing, "Geometry": LevelLearning},
		"Physics": {"Optics": LevelMastered, "Mechanics": LevelNotStarted},
	}, h.Subjects)
	assert.InDelta(t, 0.75, h.Details["Math"]["Algebra"].Confidence, 1e-9)
	assert.Equal(t, Summary{TotalTopics: 4, MasteredTopics: 1, InProgressTopics: 2}, h.Summary)

	// Stored records are untouched.
	assert.Equal(t, 0.85, records[0].Confidence)
}

func TestBuildHeatmap_SubjectFilter(t *testing.T) {
	p := DefaultPolicy()
	records := []Record{
		rec("Math", "Algebra", 0.3, at(0)),
		rec("Physics", "Optics", 0.9, at(0)),
	}

	h := p.BuildHeatmap(records, "Physics", t0)
	assert.Equal(t, map[string]map[string]Level{"Physics": {"Optics": LevelMastered}}, h.Subjects)

	h = p.BuildHeatmap(records, "Chemistry", t0)
	assert.Empty(t, h.Subjects)
}
