package draft

import (
	"strings"

	"github.com/mkamil/qalam/internal/errs"
)

// Step names one section of the authoring workflow with its own validation and
// its own dependent-row domain.
type Step string

// Authoring steps in publish order. Meta must be committed before any other
// step because it creates the lesson row.
const (
	StepMeta          Step = "meta"
	StepUnits         Step = "units"
	StepText          Step = "text"
	StepVocabulary    Step = "vocabulary"
	StepComprehension Step = "comprehension"
	StepNotes         Step = "notes"
)

// Steps lists all steps in the order publish walks them.
func Steps() []Step {
	return []Step{StepMeta, StepUnits, StepText, StepVocabulary, StepComprehension, StepNotes}
}

// ParseStep maps a client-supplied step name to a known Step.
func ParseStep(raw string) (Step, bool) {
	s := Step(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Steps() {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Populated reports whether the document carries content for the given step,
// used by publish to skip empty sections. Meta is always populated.
func (d *Document) Populated(step Step) bool {
	switch step {
	case StepMeta:
		return true
	case StepUnits:
		return len(d.Units) > 0
	case StepText:
		return len(d.Text.Sentences) > 0
	case StepVocabulary:
		return len(d.Vocabulary) > 0
	case StepComprehension:
		c := d.Comprehension
		return len(c.MCQs)+len(c.Reflective)+len(c.Analytical) > 0
	case StepNotes:
		return len(d.Notes) > 0
	}
	return false
}

func trimmed(s string) string { return strings.TrimSpace(s) }

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	if t == "" {
		return nil
	}
	return &t
}

// NormalizedMeta resolves the meta section against the draft's fixed
// classification: blank lesson_type falls back to the draft row's value.
func (d *Document) NormalizedMeta(fallbackLessonType string) Meta {
	m := d.Meta
	m.Title = trimmed(m.Title)
	m.TitleAr = trimPtr(m.TitleAr)
	m.LessonType = trimmed(m.LessonType)
	if m.LessonType == "" {
		m.LessonType = fallbackLessonType
	}
	m.Subtype = trimPtr(m.Subtype)
	m.Source = trimPtr(m.Source)
	return m
}

// NormalizedReference trims the string locator fields; blank values become nil.
func (d *Document) NormalizedReference() Reference {
	r := d.Reference
	r.ContainerID = trimPtr(r.ContainerID)
	r.UnitID = trimPtr(r.UnitID)
	return r
}

// NormalizedSentences drops entries without text and defaults sentence_order
// to the slice index.
func (d *Document) NormalizedSentences() []Sentence {
	out := make([]Sentence, 0, len(d.Text.Sentences))
	for i, s := range d.Text.Sentences {
		s.TextAr = trimmed(s.TextAr)
		if s.TextAr == "" {
			continue
		}
		if s.SentenceOrder == nil {
			order := int64(i)
			s.SentenceOrder = &order
		}
		s.UnitID = trimPtr(s.UnitID)
		s.Translation = trimPtr(s.Translation)
		s.Notes = trimPtr(s.Notes)
		out = append(out, s)
	}
	return out
}

// NormalizedVocabulary drops entries without a word.
func (d *Document) NormalizedVocabulary() []VocabEntry {
	out := make([]VocabEntry, 0, len(d.Vocabulary))
	for _, v := range d.Vocabulary {
		v.Word = trimmed(v.Word)
		if v.Word == "" {
			continue
		}
		v.Meaning = trimmed(v.Meaning)
		v.Transliteration = trimPtr(v.Transliteration)
		v.Root = trimPtr(v.Root)
		v.Pos = trimPtr(v.Pos)
		v.Note = trimPtr(v.Note)
		out = append(out, v)
	}
	return out
}

// NormalizedUnits drops entries without a unit id and defaults order_index to
// the slice index.
func (d *Document) NormalizedUnits() []UnitLink {
	out := make([]UnitLink, 0, len(d.Units))
	for i, u := range d.Units {
		u.UnitID = trimmed(u.UnitID)
		if u.UnitID == "" {
			continue
		}
		if u.OrderIndex == nil {
			idx := int64(i)
			u.OrderIndex = &idx
		}
		u.Role = trimPtr(u.Role)
		u.Note = trimPtr(u.Note)
		out = append(out, u)
	}
	return out
}

// NormalizedNotes drops entries without an excerpt and defaults the target to
// the lesson itself.
func (d *Document) NormalizedNotes() []Note {
	out := make([]Note, 0, len(d.Notes))
	for _, n := range d.Notes {
		n.Excerpt = trimmed(n.Excerpt)
		if n.Excerpt == "" {
			continue
		}
		n.NoteType = trimPtr(n.NoteType)
		if n.NoteType == nil {
			nt := "lesson_note"
			n.NoteType = &nt
		}
		n.TargetType = trimPtr(n.TargetType)
		if n.TargetType == nil {
			tt := "lesson"
			n.TargetType = &tt
		}
		n.Relation = trimPtr(n.Relation)
		if n.Relation == nil {
			rel := "about"
			n.Relation = &rel
		}
		n.Title = trimPtr(n.Title)
		n.Commentary = trimPtr(n.Commentary)
		n.TargetID = trimPtr(n.TargetID)
		out = append(out, n)
	}
	return out
}

// ValidateStep checks the step's slice of the document and returns a
// ValidationError describing the first problem found.
func (d *Document) ValidateStep(step Step, fallbackLessonType string) error {
	switch step {
	case StepMeta:
		return d.validateMeta(fallbackLessonType)
	case StepUnits:
		return d.validateUnits()
	case StepText:
		return d.validateText()
	case StepVocabulary:
		return d.validateVocabulary()
	case StepComprehension:
		return d.validateComprehension()
	case StepNotes:
		return d.validateNotes()
	}
	return errs.Validation("unknown step")
}

func (d *Document) validateMeta(fallbackLessonType string) error {
	m := d.NormalizedMeta(fallbackLessonType)
	if m.Title == "" {
		return errs.Validation("meta step requires a non-empty title")
	}
	if m.LessonType == "" {
		return errs.Validation("meta step requires lesson_type")
	}
	if m.LessonType == "quran" {
		ref := d.Reference
		if ref.Surah == nil || *ref.Surah < 1 || *ref.Surah > 114 {
			return errs.Validation("quran lessons require reference.surah in 1..114")
		}
		if ref.AyahFrom != nil && ref.AyahTo != nil && *ref.AyahFrom > *ref.AyahTo {
			return errs.Validation("reference.ayah_from must not exceed ayah_to")
		}
	}
	return nil
}

func (d *Document) validateUnits() error {
	if trimPtr(d.Reference.ContainerID) == nil {
		return errs.Validation("units step requires reference.container_id")
	}
	units := d.NormalizedUnits()
	if len(units) == 0 {
		return errs.Validation("units step requires at least one unit")
	}
	for _, u := range units {
		if *u.OrderIndex < 0 {
			return errs.Validation("units step requires non-negative order_index")
		}
	}
	return nil
}

func (d *Document) validateText() error {
	sentences := d.NormalizedSentences()
	if len(sentences) == 0 {
		return errs.Validation("text step requires at least one sentence with text_ar")
	}
	return nil
}

func (d *Document) validateVocabulary() error {
	vocab := d.NormalizedVocabulary()
	if len(vocab) == 0 {
		return errs.Validation("vocabulary step requires at least one entry")
	}
	for _, v := range vocab {
		if v.Meaning == "" {
			return errs.Validation("vocabulary entries require a meaning")
		}
	}
	return nil
}

func (d *Document) validateComprehension() error {
	c := d.Comprehension
	if len(c.MCQs)+len(c.Reflective)+len(c.Analytical) == 0 {
		return errs.Validation("comprehension step requires at least one item")
	}
	for _, q := range c.MCQs {
		if trimmed(q.Question) == "" {
			return errs.Validation("mcq requires a question")
		}
		if len(q.Options) < 2 {
			return errs.Validation("mcq requires at least two options")
		}
		correct := trimmed(q.CorrectOptionID)
		if correct == "" {
			return errs.Validation("mcq requires correct_option_id")
		}
		match := false
		for _, opt := range q.Options {
			if opt.ID == correct {
				match = true
				break
			}
		}
		if !match {
			return errs.Validation("mcq correct_option_id must match an option")
		}
	}
	return nil
}

func (d *Document) validateNotes() error {
	notes := d.NormalizedNotes()
	if len(notes) == 0 {
		return errs.Validation("notes step requires at least one note with an excerpt")
	}
	return nil
}
