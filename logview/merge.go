// Package logview merges a user's questions and the coach's feedback into a
// single timeline.
package logview

import (
	"slices"
	"time"

	"github.com/jrsteele09/swingsense/api"
)

type Kind string

const (
	KindQuestion Kind = "question"
	KindFeedback Kind = "feedback"
)

// Entry is one line of the timeline.
type Entry struct {
	Kind      Kind
	ID        string
	Text      string
	CreatedAt time.Time
}

func (e Entry) IsQuestion() bool {
	return e.Kind == KindQuestion
}

// Merge returns questions and feedback newest first. Entries with the same
// timestamp keep their input order, questions before feedback.
func Merge(questions []api.Question, feedback []api.FeedbackItem) []Entry {
	entries := make([]Entry, 0, len(questions)+len(feedback))
	for _, q := range questions {
		entries = append(entries, Entry{Kind: KindQuestion, ID: q.ID.String(), Text: q.Question, CreatedAt: q.CreatedAt.Time})
	}
	for _, f := range feedback {
		entries = append(entries, Entry{Kind: KindFeedback, ID: f.ID.String(), Text: f.Feedback, CreatedAt: f.CreatedAt.Time})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries
}
