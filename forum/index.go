package forum

import (
	"container/heap"
	"sort"
	"time"
)

// An Entry is one numbered article of an Index.
type Entry struct {
	Number    int64
	MessageID string
	Created   time.Time
	Kind      Kind
	ID        int64
}

// Index numbers every story and comment densely, in creation order,
// starting at the low water mark. An Index is immutable once built.
type Index struct {
	low      int64
	entries  []Entry
	byMsgID  map[string]int64
	byRecord map[recordKey]int64
}

type recordKey struct {
	kind Kind
	id   int64
}

// BuildIndex merges the streams by Created. Records with equal
// timestamps keep the order of the streams they come from, and earlier
// streams win ties against later ones.
func BuildIndex(low int64, streams ...[]Entry) *Index {
	if low < 1 {
		low = 1
	}
	total := 0
	sorted := make([][]Entry, len(streams))
	for i, s := range streams {
		total += len(s)
		s = append([]Entry(nil), s...)
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Created.Before(s[j].Created)
		})
		sorted[i] = s
	}

	idx := &Index{
		low:      low,
		entries:  make([]Entry, 0, total),
		byMsgID:  make(map[string]int64, total),
		byRecord: make(map[recordKey]int64, total),
	}
	h := &mergeHeap{}
	for i, s := range sorted {
		if len(s) > 0 {
			h.cursors = append(h.cursors, cursor{stream: i, entries: s})
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		c := &h.cursors[0]
		e := c.entries[c.pos]
		e.Number = low + int64(len(idx.entries))
		idx.entries = append(idx.entries, e)
		if _, dup := idx.byMsgID[e.MessageID]; !dup {
			idx.byMsgID[e.MessageID] = e.Number
		}
		idx.byRecord[recordKey{e.Kind, e.ID}] = e.Number

		c.pos++
		if c.pos == len(c.entries) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return idx
}

// Len is the number of articles.
func (idx *Index) Len() int64 { return int64(len(idx.entries)) }

// Low is the first article number.
func (idx *Index) Low() int64 { return idx.low }

// High is the last article number, Low-1 for an empty index.
func (idx *Index) High() int64 { return idx.low + idx.Len() - 1 }

// Entry returns the article numbered n.
func (idx *Index) Entry(n int64) (Entry, bool) {
	if n < idx.low || n > idx.High() {
		return Entry{}, false
	}
	return idx.entries[n-idx.low], true
}

// Number returns the number of the article with message-id msgid.
func (idx *Index) Number(msgid string) (int64, bool) {
	n, ok := idx.byMsgID[msgid]
	return n, ok
}

func (idx *Index) numberOf(kind Kind, id int64) int64 {
	return idx.byRecord[recordKey{kind, id}]
}

// Range returns the entries numbered from..to inclusive.
func (idx *Index) Range(from, to int64) []Entry {
	if from < idx.low {
		from = idx.low
	}
	if to > idx.High() {
		to = idx.High()
	}
	if from > to {
		return nil
	}
	return idx.entries[from-idx.low : to-idx.low+1]
}

type cursor struct {
	stream  int
	pos     int
	entries []Entry
}

func (c *cursor) head() Entry { return c.entries[c.pos] }

// mergeHeap orders stream cursors by their next entry, then by stream.
type mergeHeap struct {
	cursors []cursor
}

func (h *mergeHeap) Len() int { return len(h.cursors) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.cursors[i].head(), h.cursors[j].head()
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return h.cursors[i].stream < h.cursors[j].stream
}

func (h *mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap) Push(x any) { h.cursors = append(h.cursors, x.(cursor)) }

func (h *mergeHeap) Pop() any {
	old := h.cursors
	c := old[len(old)-1]
	h.cursors = old[:len(old)-1]
	return c
}
