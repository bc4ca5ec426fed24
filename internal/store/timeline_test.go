package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id, conv, sender string, at time.Time) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       sender,
		Body:           "body " + id,
		CreatedAt:      at,
	}
}

func batchOf(conv string, n int, start time.Time) []models.Message {
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, msg(fmt.Sprintf("m%02d", i), conv, "u1", start.Add(time.Duration(i)*time.Minute)))
	}
	return out
}

func TestMergeIsIdempotent(t *testing.T) {
	batch := batchOf("c1", 5, baseTime)

	once := NewTimeline()
	once.Merge(batch)

	twice := NewTimeline()
	twice.Merge(batch)
	twice.Merge(batch)

	require.Equal(t, once.Messages(), twice.Messages())
	require.Len(t, twice.Messages(), 5)
}

func TestMergeKeepsOrderUnderArbitraryArrival(t *testing.T) {
	tl := NewTimeline()

	// Pages arrive newest-first, pushes interleave arbitrarily.
	tl.Merge([]models.Message{
		msg("d", "c1", "u1", baseTime.Add(3*time.Minute)),
		msg("e", "c1", "u1", baseTime.Add(4*time.Minute)),
	})
	tl.Merge([]models.Message{
		msg("a", "c1", "u2", baseTime),
		msg("b", "c1", "u2", baseTime.Add(1*time.Minute)),
	})
	tl.Merge([]models.Message{
		msg("c", "c1", "u1", baseTime.Add(2*time.Minute)),
	})

	got := tl.Messages()
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		require.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt),
			"timeline out of order at index %d", i)
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"},
		[]string{got[0].ID, got[1].ID, got[2].ID, got[3].ID, got[4].ID})
}

func TestMergeLastWriteWinsOnDuplicateID(t *testing.T) {
	tl := NewTimeline()
	tl.Merge([]models.Message{msg("a", "c1", "u1", baseTime)})

	richer := msg("a", "c1", "u1", baseTime)
	richer.Read = true
	tl.Merge([]models.Message{richer})

	require.Len(t, tl.Messages(), 1)
	require.True(t, tl.Messages()[0].Read)
}

func TestPaginationCursorMonotonic(t *testing.T) {
	tl := NewTimeline()
	tl.ApplyPage(0, batchOf("c1", 3, baseTime.Add(2*time.Hour)), 3, false)
	tl.ApplyPage(1, nil, 3, false)
	tl.ApplyPage(2, nil, 3, true)
	require.Equal(t, 2, tl.HighestPage())

	// An older page arriving late never regresses the cursor.
	tl.ApplyPage(1, nil, 3, false)
	require.Equal(t, 2, tl.HighestPage())
}

func TestCanLoadMore(t *testing.T) {
	tl := NewTimeline()
	require.False(t, tl.CanLoadMore(), "nothing known yet")

	tl.ApplyPage(0, batchOf("c1", 2, baseTime), 2, false)
	require.True(t, tl.CanLoadMore())
	require.Equal(t, 1, tl.NextPage())

	tl.ApplyPage(1, nil, 2, true)
	require.False(t, tl.CanLoadMore(), "terminal page reached")
}

func TestCanLoadMoreStopsAtTotalPages(t *testing.T) {
	tl := NewTimeline()
	tl.ApplyPage(0, batchOf("c1", 2, baseTime), 1, false)
	require.False(t, tl.CanLoadMore())
}

func TestMarkReadOnlyFlipsForward(t *testing.T) {
	tl := NewTimeline()
	tl.Merge([]models.Message{msg("a", "c1", "u1", baseTime)})

	require.True(t, tl.MarkRead("a"))
	require.False(t, tl.MarkRead("a"), "already read")
	require.False(t, tl.MarkRead("missing"))
	require.True(t, tl.Messages()[0].Read)
}

func TestMarkAllReadBy(t *testing.T) {
	tl := NewTimeline()
	tl.Merge([]models.Message{
		msg("a", "c1", "me", baseTime),
		msg("b", "c1", "peer", baseTime.Add(time.Minute)),
	})
	tl.MarkAllReadBy("peer")

	got := tl.Messages()
	require.True(t, got[0].Read, "peer read my message")
	require.False(t, got[1].Read, "peer's own message untouched")
}
