package normup

import (
	"context"
	"fmt"
	"time"
)

// Row is a storage row keyed by physical column
type Row map[string]any

// Capabilities are the dialect support flags of a storage engine
type Capabilities struct {
	Upserts bool
	// Returning engines hand back the stored row. Others may return a partial
	// row or none, and the written values are merged over it.
	Returning bool
	// ReportsCreated engines tell inserts from updates
	ReportsCreated bool
}

// QueryInterface is the storage-engine native insert-or-update primitive.
// Upsert must be atomic: it either applies insert (new row) or update
// (conflicting row) and returns the resulting row with a created flag.
type QueryInterface interface {
	Upsert(ctx context.Context, model ModelDescriptor, insert, update *FieldMap) (Row, bool, error)
	Capabilities() Capabilities
}

// UpsertOutcome is the result of one upsert call
type UpsertOutcome struct {
	Record  *Instance
	Created bool
	// CreatedKnown is false when the engine cannot report Created
	CreatedKnown bool
}

// dispatch makes exactly one call into the storage engine. Errors from the
// engine are returned unchanged; nothing is retried.
func (db *DB) dispatch(ctx context.Context, m *Model, set FieldSet, conflict []string) (*UpsertOutcome, error) {
	desc, err := m.Descriptor(set.Insert, conflict)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.breaker != nil {
		if err := db.breaker.before(); err != nil {
			db.metrics.ErrorCount("circuit_open")
			return nil, &ORMError{Code: ErrCodeConnection, Message: fmt.Sprintf("circuit open: %v", err), Internal: err}
		}
	}
	caps := db.qi.Capabilities()
	start := time.Now()
	row, created, err := db.qi.Upsert(ctx, desc, set.Insert, set.Update)
	if db.breaker != nil {
		db.breaker.after(err)
	}
	db.metrics.QueryDuration(time.Since(start), "upsert "+desc.Table)
	db.audit.OnAudit(ctx, AuditEntry{Action: AuditActionUpsert, Table: desc.Table, Entity: set.Insert, Err: err})
	if err != nil {
		db.metrics.ErrorCount(errorKind(err))
		db.logger.Error("upsert dispatch failed",
			Field{Key: "model", Value: m.name},
			Field{Key: "table", Value: desc.Table},
			Field{Key: "error", Value: err},
		)
		return nil, err
	}
	if !caps.ReportsCreated {
		created = false
	} else {
		db.metrics.UpsertResult(desc.Table, created)
	}
	if row == nil || !caps.Returning {
		row = mergeWritten(row, set, created)
	}
	return &UpsertOutcome{Record: m.hydrate(row), Created: created, CreatedKnown: caps.ReportsCreated}, nil
}

// mergeWritten fills the columns the engine did not hand back from the
// resolved maps. Update values win for rows that already existed.
func mergeWritten(row Row, set FieldSet, created bool) Row {
	out := make(Row, len(row)+set.Insert.Len())
	for k, v := range row {
		out[k] = v
	}
	set.Insert.Range(func(c string, v any) bool {
		if _, ok := out[c]; !ok {
			out[c] = v
		}
		return true
	})
	if !created {
		set.Update.Range(func(c string, v any) bool { out[c] = v; return true })
	}
	return out
}
