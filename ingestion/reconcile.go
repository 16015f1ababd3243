package ingestion

import "github.com/TogetherCrew/hivemind-backend/core"

// Record pairs a chunk with its content fingerprint for reconciliation.
type Record struct {
	Chunk       *core.Chunk
	Fingerprint core.Fingerprint
}

// Plan is the outcome of reconciling incoming chunk records against the
// document registry: which records are new, which changed, and which are
// already ingested with identical content.
type Plan struct {
	Insert []Record // record key unseen in the registry
	Update []Record // key seen, fingerprint changed
	Skip   []Record // key seen, fingerprint identical
}

// Changed returns the records that need embedding and upserting,
// insertions first.
func (p *Plan) Changed() []Record {
	changed := make([]Record, 0, len(p.Insert)+len(p.Update))
	changed = append(changed, p.Insert...)
	changed = append(changed, p.Update...)
	return changed
}

// Reconcile decides, for each incoming record, whether it must be
// inserted, updated, or skipped, by comparing its fingerprint against
// the registry's view of previously ingested content.
//
// Reconcile is a pure function of its inputs so the dedup decision can
// be tested without a live store. An empty existing map (first run over
// a namespace) puts everything in Insert.
func Reconcile(existing map[string]core.Fingerprint, incoming []Record) Plan {
	var plan Plan
	for _, record := range incoming {
		known, seen := existing[record.Chunk.RecordKey()]
		switch {
		case !seen:
			plan.Insert = append(plan.Insert, record)
		case known != record.Fingerprint:
			plan.Update = append(plan.Update, record)
		default:
			plan.Skip = append(plan.Skip, record)
		}
	}
	return plan
}
