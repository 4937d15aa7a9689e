package audit

import (
	"fmt"
	"time"

	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionIngest           Action = "ingest"
	ActionRebuild          Action = "rebuild"
	ActionSessionCreated   Action = "session_created"
	ActionSessionDeleted   Action = "session_deleted"
	ActionDocumentAttached Action = "document_attached"
	ActionSummaryGenerated Action = "summary_generated"
)

// Scope describes what an action applies to.
type Scope string

const (
	ScopeStore   Scope = "store"
	ScopeSession Scope = "session"
)

// Entry is a single audit trail record.
type Entry struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	ActorType   ActorType     `json:"actor_type"`
	ActorID     string        `json:"actor_id"`
	Action      Action        `json:"action"`
	Scope       Scope         `json:"scope"`
	ScopeID     string        `json:"scope_id,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	AffectedIDs []string      `json:"affected_ids,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
	Failed      bool          `json:"failed,omitempty"`
}

// StoreRun builds the entry for an ingest or rebuild of collection. res may
// be nil when the run failed before producing a result.
func StoreRun(action Action, actorType ActorType, actorID, collection string, res *vectordb.IngestResult, dur time.Duration, runErr error) Entry {
	e := Entry{
		ActorType: actorType,
		ActorID:   actorID,
		Action:    action,
		Scope:     ScopeStore,
		ScopeID:   collection,
		Duration:  dur,
	}
	if res != nil {
		e.Summary = fmt.Sprintf("%d added, %d skipped, %d failed", len(res.Added), len(res.Skipped), len(res.Failed))
		e.AffectedIDs = append(e.AffectedIDs, res.Added...)
		for _, f := range res.Failed {
			e.Detail += fmt.Sprintf("%s: %v\n", f.ID, f.Err)
		}
	}
	if runErr != nil {
		e.Failed = true
		e.Detail += runErr.Error()
		if e.Summary == "" {
			e.Summary = "failed"
		}
	}
	return e
}
