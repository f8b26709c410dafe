package logview_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/swingsense/api"
	"github.com/jrsteele09/swingsense/logview"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) api.Timestamp {
	return api.Timestamp{Time: base.Add(time.Duration(minutes) * time.Minute)}
}

func ids(entries []logview.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestMerge(t *testing.T) {
	t.Run("newest first across both lists", func(t *testing.T) {
		questions := []api.Question{
			{ID: "q1", Question: "Why do I slice?", CreatedAt: at(0)},
			{ID: "q2", Question: "How do I chip?", CreatedAt: at(10)},
		}
		feedback := []api.FeedbackItem{
			{ID: "f1", Feedback: "Close the face", CreatedAt: at(1)},
			{ID: "f2", Feedback: "Use a 9 iron", CreatedAt: at(11)},
		}

		entries := logview.Merge(questions, feedback)
		require.Equal(t, []string{"f2", "q2", "f1", "q1"}, ids(entries))
		require.Equal(t, logview.KindFeedback, entries[0].Kind)
		require.True(t, entries[1].IsQuestion())
		require.Equal(t, "How do I chip?", entries[1].Text)
	})

	t.Run("equal timestamps keep input order", func(t *testing.T) {
		questions := []api.Question{
			{ID: "q1", CreatedAt: at(5)},
			{ID: "q2", CreatedAt: at(5)},
		}
		feedback := []api.FeedbackItem{
			{ID: "f1", CreatedAt: at(5)},
			{ID: "f2", CreatedAt: at(6)},
		}

		require.Equal(t, []string{"f2", "q1", "q2", "f1"}, ids(logview.Merge(questions, feedback)))
	})

	t.Run("empty inputs", func(t *testing.T) {
		require.Empty(t, logview.Merge(nil, nil))
		require.Equal(t, []string{"f1"}, ids(logview.Merge(nil, []api.FeedbackItem{{ID: "f1", CreatedAt: at(0)}})))
	})
}
