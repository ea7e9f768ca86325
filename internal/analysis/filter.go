package analysis

import (
	"sort"
	"time"

	"github.com/Hara602/wheaSentry/internal/model"
)

// FilterResult is what survives one batch.
type FilterResult struct {
	Matched     []model.EventRecord
	Identifiers []model.EventID // distinct, ascending
	Skipped     int             // records with no usable timestamp
}

// Filter keeps the records generated at or after sessionStart whose masked
// identifier is accepted by recognized. Records without a timestamp are
// skipped without failing the batch. Filter does not modify its input.
func Filter(records []model.EventRecord, sessionStart time.Time, recognized func(model.EventID) bool) FilterResult {
	var res FilterResult
	seen := make(map[model.EventID]bool)

	for _, r := range records {
		if r.GeneratedAt.IsZero() {
			res.Skipped++
			continue
		}
		if r.GeneratedAt.Before(sessionStart) {
			continue
		}
		id := r.ID()
		if !recognized(id) {
			continue
		}
		res.Matched = append(res.Matched, r)
		if !seen[id] {
			seen[id] = true
			res.Identifiers = append(res.Identifiers, id)
		}
	}

	sort.Slice(res.Identifiers, func(i, j int) bool { return res.Identifiers[i] < res.Identifiers[j] })
	return res
}
