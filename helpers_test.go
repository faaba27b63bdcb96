package normup

import (
	"context"
	"sync"
	"time"
)

// upsertCall is one recorded QueryInterface.Upsert invocation
type upsertCall struct {
	model  ModelDescriptor
	insert *FieldMap
	update *FieldMap
}

// fakeQI records calls instead of talking to a database
type fakeQI struct {
	mu      sync.Mutex
	calls   []upsertCall
	row     Row
	created bool
	err     error
	caps    *Capabilities
}

func (f *fakeQI) Upsert(ctx context.Context, model ModelDescriptor, insert, update *FieldMap) (Row, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, upsertCall{model: model, insert: insert, update: update})
	if f.err != nil {
		return nil, false, f.err
	}
	return f.row, f.created, nil
}

func (f *fakeQI) Capabilities() Capabilities {
	if f.caps != nil {
		return *f.caps
	}
	return Capabilities{Upserts: true, Returning: true, ReportsCreated: true}
}

func (f *fakeQI) last() upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// newTestDB builds a DB over a fake engine with a frozen clock
func newTestDB(qi QueryInterface, opts ...Option) *DB {
	db, err := New(qi, append([]Option{WithClock(fixedClock)}, opts...)...)
	if err != nil {
		panic(err)
	}
	return db
}

// defineUser mirrors the canonical User model: a unique name, a value, and
// createdAt stored in created_at
func defineUser(db *DB, opts ...ModelOption) *Model {
	return db.MustDefine("User", []Attribute{
		{Name: "id", Type: TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: TypeString, Unique: true, NotNull: true},
		{Name: "value", Type: TypeInteger},
		{Name: "createdAt", Field: "created_at", Type: TypeDate},
	}, opts...)
}

type recordingMetrics struct {
	mu        sync.Mutex
	durations []string
	errors    []string
	states    []string
	conns     [][2]int32
	results   []string
}

func (m *recordingMetrics) QueryDuration(_ time.Duration, q string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, q)
}
func (m *recordingMetrics) UpsertResult(table string, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := "update"
	if created {
		kind = "insert"
	}
	m.results = append(m.results, table+":"+kind)
}
func (m *recordingMetrics) ConnectionCount(active, idle int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = append(m.conns, [2]int32{active, idle})
}
func (m *recordingMetrics) ErrorCount(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}
func (m *recordingMetrics) CircuitStateChanged(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (c *captureLogger) add(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, level+" "+msg)
}
func (c *captureLogger) Debug(msg string, _ ...Field) { c.add("debug", msg) }
func (c *captureLogger) Info(msg string, _ ...Field)  { c.add("info", msg) }
func (c *captureLogger) Warn(msg string, _ ...Field)  { c.add("warn", msg) }
func (c *captureLogger) Error(msg string, _ ...Field) { c.add("error", msg) }
