package normup

import "context"

// BeforeUpsert can be implemented by an entity passed to UpsertEntity
type BeforeUpsert interface {
	BeforeUpsert(ctx context.Context) error
}

// AfterUpsert can be implemented by an entity passed to UpsertEntity;
// created reports whether the row was inserted
type AfterUpsert interface {
	AfterUpsert(ctx context.Context, created bool) error
}
