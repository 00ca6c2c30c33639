// Package draft gives the draft's JSON payload its step-scoped shape: the
// canonical initial skeleton, lenient parsing of client documents, and per-step
// normalization and validation used by the committer. Everything here is pure;
// persistence treats the document as an opaque blob.
package draft

import (
	"bytes"
	"encoding/json"

	"github.com/mkamil/qalam/internal/errs"
)

// SchemaVersion is stamped into every new document.
const SchemaVersion int64 = 1

// Document is the typed view of a draft's JSON payload. Clients may send extra
// keys; they are ignored on parse and not preserved.
type Document struct {
	SchemaVersion int64         `json:"schema_version"`
	Meta          Meta          `json:"meta"`
	Reference     Reference     `json:"reference"`
	Text          Text          `json:"text"`
	Vocabulary    []VocabEntry  `json:"vocabulary"`
	Comprehension Comprehension `json:"comprehension"`
	Units         []UnitLink    `json:"units"`
	Notes         []Note        `json:"notes"`
}

// Meta is the lesson header section.
type Meta struct {
	Title      string  `json:"title"`
	TitleAr    *string `json:"title_ar"`
	LessonType string  `json:"lesson_type"`
	Subtype    *string `json:"subtype"`
	Difficulty *int64  `json:"difficulty"`
	Source     *string `json:"source"`
}

// Reference is a structured locator for the lesson's source passage.
type Reference struct {
	ContainerID *string `json:"container_id"`
	UnitID      *string `json:"unit_id"`
	Surah       *int64  `json:"surah"`
	AyahFrom    *int64  `json:"ayah_from"`
	AyahTo      *int64  `json:"ayah_to"`
}

// Text holds the passage sentences.
type Text struct {
	Sentences []Sentence `json:"sentences"`
}

// Sentence is one passage line with optional translation and notes.
type Sentence struct {
	UnitID        *string `json:"unit_id"`
	SentenceOrder *int64  `json:"sentence_order"`
	TextAr        string  `json:"text_ar"`
	Translation   *string `json:"translation"`
	Notes         *string `json:"notes"`
}

// VocabEntry is one vocabulary item.
type VocabEntry struct {
	Word            string  `json:"word"`
	Transliteration *string `json:"transliteration"`
	Meaning         string  `json:"meaning"`
	Root            *string `json:"root"`
	Pos             *string `json:"pos"`
	Note            *string `json:"note"`
}

// Comprehension groups question items by kind. Reflective and analytical items
// are free-form objects; only MCQs have enforced structure.
type Comprehension struct {
	MCQs       []MCQ             `json:"mcqs"`
	Reflective []json.RawMessage `json:"reflective"`
	Analytical []json.RawMessage `json:"analytical"`
}

// MCQ is a multiple-choice question.
type MCQ struct {
	ID              *string     `json:"id"`
	Question        string      `json:"question"`
	Options         []MCQOption `json:"options"`
	CorrectOptionID string      `json:"correct_option_id"`
}

// MCQOption is one selectable answer.
type MCQOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// UnitLink attaches the lesson to a unit within a container.
type UnitLink struct {
	UnitID     string  `json:"unit_id"`
	OrderIndex *int64  `json:"order_index"`
	Role       *string `json:"role"`
	Note       *string `json:"note"`
}

// Note is a study note attached to the lesson or one of its parts.
type Note struct {
	NoteType   *string `json:"note_type"`
	Title      *string `json:"title"`
	Excerpt    string  `json:"excerpt"`
	Commentary *string `json:"commentary"`
	TargetType *string `json:"target_type"`
	TargetID   *string `json:"target_id"`
	Relation   *string `json:"relation"`
}

// BuildInitial returns the canonical empty-section skeleton for a new draft.
// Deterministic for identical inputs; the seed reference is copied verbatim.
func BuildInitial(lessonType string, subtype, source *string, seed *Reference) *Document {
	doc := &Document{
		SchemaVersion: SchemaVersion,
		Meta: Meta{
			Title:      "",
			LessonType: lessonType,
			Subtype:    subtype,
			Source:     source,
		},
		Text:          Text{Sentences: []Sentence{}},
		Vocabulary:    []VocabEntry{},
		Comprehension: Comprehension{MCQs: []MCQ{}, Reflective: []json.RawMessage{}, Analytical: []json.RawMessage{}},
		Units:         []UnitLink{},
		Notes:         []Note{},
	}
	if seed != nil {
		doc.Reference = *seed
	}
	return doc
}

// Parse decodes a stored or client-supplied payload into a Document. A nil or
// empty payload yields an empty document; a payload that is not a JSON object
// is a validation failure.
func Parse(raw []byte) (*Document, error) {
	doc := &Document{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}
	if trimmed[0] != '{' {
		return nil, errs.Validation("draft_json must be an object")
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return nil, errs.Validation("draft_json is not valid JSON: " + err.Error())
	}
	return doc, nil
}

// Encode marshals a document back to its stored form.
func Encode(doc *Document) (json.RawMessage, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
