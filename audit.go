package normup

import "context"

// AuditAction represents the type of operation being audited.
type AuditAction string

const AuditActionUpsert AuditAction = "upsert"

// AuditEntry describes one dispatched storage operation.
type AuditEntry struct {
	Action AuditAction
	Table  string
	Entity any   // the insert field map
	Err    error // non-nil if the storage engine failed
}

// AuditHook receives an entry after every dispatch.
// Implementations should be non-blocking and safe for concurrent use.
type AuditHook interface {
	OnAudit(ctx context.Context, entry AuditEntry)
}

// AuditHookFunc is a convenience adapter to use ordinary functions as AuditHook.
type AuditHookFunc func(ctx context.Context, entry AuditEntry)

func (f AuditHookFunc) OnAudit(ctx context.Context, entry AuditEntry) { f(ctx, entry) }
