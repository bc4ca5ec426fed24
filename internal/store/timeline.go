package store

import (
	"sort"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

// Timeline holds one conversation's messages plus its pagination cursor.
// Page 0 is the most recent page; increasing page numbers fetch older history.
type Timeline struct {
	messages    []models.Message
	highestPage int // highest contiguously loaded page, -1 before any fetch
	totalPages  int
	reachedEnd  bool // last fetched batch was flagged terminal
}

func NewTimeline() *Timeline {
	return &Timeline{highestPage: -1}
}

// Merge overlays a batch onto the timeline by message id, last write wins,
// then re-sorts the whole slice ascending by creation time. Re-sorting every
// merge keeps the ordering correct under arbitrary arrival order; message
// counts per conversation stay small because history is paginated. Returns
// how many ids were newly inserted, so callers can tell a duplicate delivery
// from a genuinely new message.
func (t *Timeline) Merge(batch []models.Message) int {
	if len(batch) == 0 {
		return 0
	}
	index := make(map[string]int, len(t.messages))
	for i, m := range t.messages {
		index[m.ID] = i
	}
	added := 0
	for _, m := range batch {
		if m.ID == "" {
			continue
		}
		if i, ok := index[m.ID]; ok {
			t.messages[i] = m
			continue
		}
		index[m.ID] = len(t.messages)
		t.messages = append(t.messages, m)
		added++
	}
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
	return added
}

// ApplyPage merges a fetched page and advances the cursor. The cursor never
// regresses: loading an older page cannot undo a newer one.
func (t *Timeline) ApplyPage(page int, batch []models.Message, totalPages int, last bool) {
	t.Merge(batch)
	if page > t.highestPage {
		t.highestPage = page
	}
	t.totalPages = totalPages
	if last {
		t.reachedEnd = true
	}
}

// CanLoadMore reports whether older history remains to be fetched.
func (t *Timeline) CanLoadMore() bool {
	if t.reachedEnd || t.totalPages == 0 {
		return false
	}
	return t.highestPage+1 < t.totalPages
}

// NextPage is the page index a "load more" should request.
func (t *Timeline) NextPage() int { return t.highestPage + 1 }

func (t *Timeline) HighestPage() int { return t.highestPage }

// Messages returns the ordered timeline. Callers must not mutate it.
func (t *Timeline) Messages() []models.Message { return t.messages }

func (t *Timeline) Len() int { return len(t.messages) }

// MarkRead flips one message's read flag. The flag only moves false -> true.
func (t *Timeline) MarkRead(messageID string) bool {
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			if t.messages[i].Read {
				return false
			}
			t.messages[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllReadBy flips the read flag on every message not sent by readerID,
// i.e. the messages that reader just caught up on.
func (t *Timeline) MarkAllReadBy(readerID string) {
	for i := range t.messages {
		if t.messages[i].SenderID != readerID {
			t.messages[i].Read = true
		}
	}
}
