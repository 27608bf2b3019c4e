package entropy

import "sort"

// Awards is the weight vector handed to the top-ranked filters of each
// tile during filter-set design: a tile's best filter earns Awards[0]
// points toward global selection, the runner-up Awards[1], and so on.
var Awards = [4]int{5, 3, 1, 1}

// AwardCount is the number of per-tile ranks that earn award points.
const AwardCount = len(Awards)

// ScoreEntry pairs a filter index with its accumulated score.
type ScoreEntry struct {
	Index int
	Score int64
}

// Scorer accumulates per-filter scores during filter design. Residual
// scores accumulate low-is-better; award points accumulate high-is-better.
// Ties break toward the lower index so filter selection is deterministic.
type Scorer struct {
	scores []int64
}

// NewScorer creates a scorer over n filter slots.
func NewScorer(n int) *Scorer {
	return &Scorer{scores: make([]int64, n)}
}

// Reset zeroes all slots.
func (s *Scorer) Reset() {
	for i := range s.scores {
		s.scores[i] = 0
	}
}

// Add accumulates score points onto filter index.
func (s *Scorer) Add(index int, score int) {
	s.scores[index] += int64(score)
}

// Lowest returns up to k entries with the smallest scores, ascending.
func (s *Scorer) Lowest(k int) []ScoreEntry {
	return s.top(k, func(a, b ScoreEntry) bool {
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.Index < b.Index
	})
}

// Highest returns up to k entries with the largest scores, descending.
func (s *Scorer) Highest(k int) []ScoreEntry {
	return s.top(k, func(a, b ScoreEntry) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})
}

func (s *Scorer) top(k int, less func(a, b ScoreEntry) bool) []ScoreEntry {
	entries := make([]ScoreEntry, len(s.scores))
	for i, v := range s.scores {
		entries[i] = ScoreEntry{Index: i, Score: v}
	}
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	if k > len(entries) {
		k = len(entries)
	}
	return entries[:k]
}
