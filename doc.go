// Package dashboard provides a subscription multiplexer for dashboard UIs
// that observe live NATS traffic.
//
// Many independent widgets can watch the same subjects without each opening
// its own network subscription. The multiplexer owns exactly one physical
// stream per subject, absorbs inbound messages in a bounded dispatch queue,
// fans each message out to every interested widget, and keeps a bounded
// per-widget history of extracted values for rendering.
//
// # Architecture
//
//	┌───────────────────────────────────┐
//	│        Diagnostics (diag)         │  stats, health, buffers,
//	│   HTTP + WebSocket + /metrics     │  prometheus scrape
//	└───────────────────────────────────┘
//	            ↓ reads
//	┌───────────────────────────────────┐
//	│        Multiplexer (mux)          │  subscription registry,
//	│  registry → queue → buffer store  │  bounded dispatch, fan-out
//	└───────────────────────────────────┘
//	            ↓ consumes
//	┌───────────────────────────────────┐
//	│   Connection Provider (conn)      │  NATS pub/sub with circuit
//	│   Value Extractor (extract)       │  breaker; gjson path queries
//	└───────────────────────────────────┘
//
// Data flow: transport message → dispatch queue → drain loop → registry
// fan-out per subject → value extraction per listener → widget buffer
// append → UI reads a buffer snapshot.
//
// # Resource bounds
//
// Three independent bounds keep memory predictable under sustained load:
//
//   - The dispatch queue is a fixed-capacity ring; when dispatch falls
//     behind arrival rate the oldest queued messages are dropped, because
//     dashboards display current state rather than a full audit history.
//   - Every widget buffer holds at most its configured item count, with
//     optional age-based expiry applied first.
//   - The buffer store tracks an approximate total memory estimate against
//     a fixed budget and signals warning and critical pressure so the UI
//     can offer a manual clear-all action.
//
// # Core packages
//
//   - mux: the subscription registry, dispatch queue, widget buffer store,
//     and stats aggregator behind a single Multiplexer facade
//   - conn: the connection provider interface plus NATS and in-memory
//     implementations
//   - extract: value extraction from message payloads via gjson paths
//   - diag: operator-facing diagnostics over HTTP and WebSocket
//
// Supporting packages follow the platform conventions: errors for
// classified error handling, metric for prometheus registration, health
// for component health reporting, and config for application configuration.
package dashboard
