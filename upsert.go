package normup

import (
	"context"
	"fmt"
)

// Upsert inserts payload as a new row or updates the conflicting one.
//
// Record validation (required attributes, type checks) is skipped on purpose;
// constraint enforcement is left to the storage engine.
func (m *Model) Upsert(ctx context.Context, payload Payload, opts ...UpsertOption) (*UpsertOutcome, error) {
	if !m.db.qi.Capabilities().Upserts {
		return nil, &ORMError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("storage engine does not support upsert (model %s)", m.name)}
	}
	o := collectOptions(opts)
	if !o.noHooks && m.before != nil {
		if err := m.before(ctx, payload); err != nil {
			return nil, err
		}
	}
	set, err := m.resolve(payload, o)
	if err != nil {
		return nil, err
	}
	out, err := m.db.dispatch(ctx, m, set, o.conflict)
	if err != nil {
		return nil, err
	}
	if !o.noHooks && m.after != nil {
		if err := m.after(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
