// Package reconcile classifies extracted records against stored state.
package reconcile

import (
	"github.com/gyeh/feeschedule/internal/model"
)

// Outcome is the classification of one candidate record.
type Outcome int

const (
	New Outcome = iota
	Changed
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// Lookup holds the stored non-key values of every existing record, by
// natural key.
type Lookup map[model.Key]model.Values

// Result is the write set of one batch.
type Result struct {
	// Seen is the number of candidate records.
	Seen int
	// New records are inserted, in first-seen key order.
	New []model.FeeScheduleRecord
	// Changed records overwrite the stored non-key fields, in first-seen key
	// order.
	Changed []model.FeeScheduleRecord
	// Duplicates is Seen minus the records written. Rows replaced by a later
	// row with the same key count here.
	Duplicates int
	// Superseded counts rows replaced by a later row with the same key.
	Superseded int
}

// Classify compares one record against the stored state.
func Classify(rec *model.FeeScheduleRecord, existing Lookup) Outcome {
	stored, ok := existing[rec.Key()]
	if !ok {
		return New
	}
	if rec.Values().Equivalent(stored) {
		return Duplicate
	}
	return Changed
}

// Reconcile classifies every record of a batch. Records sharing a natural
// key are each classified against existing; the last one decides the key's
// outcome and payload.
func Reconcile(batch []model.FeeScheduleRecord, existing Lookup) Result {
	type entry struct {
		outcome Outcome
		rec     model.FeeScheduleRecord
	}

	var order []model.Key
	set := make(map[model.Key]entry, len(batch))
	res := Result{Seen: len(batch)}

	for i := range batch {
		rec := batch[i]
		k := rec.Key()
		if _, ok := set[k]; ok {
			res.Superseded++
		} else {
			order = append(order, k)
		}
		set[k] = entry{outcome: Classify(&rec, existing), rec: rec}
	}

	for _, k := range order {
		e := set[k]
		switch e.outcome {
		case New:
			res.New = append(res.New, e.rec)
		case Changed:
			res.Changed = append(res.Changed, e.rec)
		}
	}
	res.Duplicates = res.Seen - len(res.New) - len(res.Changed)
	return res
}

// Keys returns the distinct natural keys of a batch in first-seen order.
func Keys(batch []model.FeeScheduleRecord) []model.Key {
	seen := make(map[model.Key]struct{}, len(batch))
	var keys []model.Key
	for i := range batch {
		k := batch[i].Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
