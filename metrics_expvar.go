package normup

import (
	"expvar"
	"time"
)

// ExpvarMetrics publishes counters under /debug/vars when the expvar handler is mounted
type ExpvarMetrics struct{}

var (
	expvarUpsertCount       = expvar.NewInt("normup_upsert_count")
	expvarLastUpsertMs      = expvar.NewInt("normup_last_upsert_ms")
	expvarInserts           = expvar.NewMap("normup_inserts")
	expvarUpdates           = expvar.NewMap("normup_updates")
	expvarErrorCount        = expvar.NewMap("normup_error_count")
	expvarCircuitState      = expvar.NewString("normup_circuit_state")
	expvarConnectionsActive = expvar.NewInt("normup_connections_active")
	expvarConnectionsIdle   = expvar.NewInt("normup_connections_idle")
)

func (ExpvarMetrics) QueryDuration(duration time.Duration, _ string) {
	expvarUpsertCount.Add(1)
	expvarLastUpsertMs.Set(duration.Milliseconds())
}

func (ExpvarMetrics) UpsertResult(table string, created bool) {
	if created {
		expvarInserts.Add(table, 1)
		return
	}
	expvarUpdates.Add(table, 1)
}

func (ExpvarMetrics) ConnectionCount(active, idle int32) {
	expvarConnectionsActive.Set(int64(active))
	expvarConnectionsIdle.Set(int64(idle))
}

func (ExpvarMetrics) ErrorCount(kind string) { expvarErrorCount.Add(kind, 1) }

func (ExpvarMetrics) CircuitStateChanged(state string) { expvarCircuitState.Set(state) }
