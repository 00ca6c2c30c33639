package draft

import (
	"encoding/json"
	"time"
)

// SnapshotInclude selects which sections are embedded in the lesson_json
// snapshot stored on the lesson row. Meta and reference are always included.
type SnapshotInclude struct {
	Units         bool
	Text          bool
	Vocabulary    bool
	Comprehension bool
	Notes         bool
}

type snapshot struct {
	SchemaVersion int64          `json:"schema_version"`
	Meta          Meta           `json:"meta"`
	Reference     Reference      `json:"reference"`
	Units         []UnitLink     `json:"units,omitempty"`
	Text          *Text          `json:"text,omitempty"`
	Vocabulary    []VocabEntry   `json:"vocabulary,omitempty"`
	Comprehension *Comprehension `json:"comprehension,omitempty"`
	Notes         []Note         `json:"notes,omitempty"`
	PublishedAt   *string        `json:"published_at,omitempty"`
}

// Snapshot renders the lesson_json blob for the lesson row. The lesson type in
// the embedded meta always reflects the draft row's classification.
func Snapshot(d *Document, lessonType string, include SnapshotInclude, publishedAt *time.Time) (json.RawMessage, error) {
	snap := snapshot{
		SchemaVersion: d.SchemaVersion,
		Meta:          d.NormalizedMeta(lessonType),
		Reference:     d.Reference,
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = SchemaVersion
	}
	snap.Meta.LessonType = lessonType
	if include.Units {
		snap.Units = d.NormalizedUnits()
	}
	if include.Text {
		t := Text{Sentences: d.NormalizedSentences()}
		snap.Text = &t
	}
	if include.Vocabulary {
		snap.Vocabulary = d.NormalizedVocabulary()
	}
	if include.Comprehension {
		c := d.Comprehension
		if c.MCQs == nil {
			c.MCQs = []MCQ{}
		}
		if c.Reflective == nil {
			c.Reflective = []json.RawMessage{}
		}
		if c.Analytical == nil {
			c.Analytical = []json.RawMessage{}
		}
		snap.Comprehension = &c
	}
	if include.Notes {
		snap.Notes = d.NormalizedNotes()
	}
	if publishedAt != nil {
		ts := publishedAt.UTC().Format(time.RFC3339)
		snap.PublishedAt = &ts
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
