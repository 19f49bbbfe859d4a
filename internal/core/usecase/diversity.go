package usecase

import "github.com/kirillkom/prism-answer/internal/core/domain"

// localityWindow is how many consecutive chunk indexes share one locality key.
const localityWindow = 3

type localityKey struct {
	documentID string
	page       int
	window     int
}

func localityOf(c domain.Chunk) localityKey {
	page := -1
	if c.Page != nil {
		page = *c.Page
	}
	return localityKey{
		documentID: c.DocumentID,
		page:       page,
		window:     c.ChunkIndex / localityWindow,
	}
}

// diversify keeps the first candidate of each locality key in the given order
// and stops once limit candidates are kept.
func diversify(sorted []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 {
		return nil
	}
	seen := make(map[localityKey]struct{}, len(sorted))
	out := make([]domain.Candidate, 0, min(limit, len(sorted)))
	for _, c := range sorted {
		key := localityOf(c.Chunk)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
