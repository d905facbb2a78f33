// Package mux implements the subscription multiplexer: many dashboard
// widgets observe live pub/sub traffic through shared, reference-counted
// subscriptions instead of one network subscription per widget.
//
// The pipeline has four parts:
//
//	transport message → dispatch queue → drain loop → registry fan-out
//	                                                   → extractor per listener
//	                                                   → widget buffer store
//
// The dispatch queue is a bounded ring that absorbs transport callbacks
// without ever blocking the delivery path; under sustained overload its
// overflow policy (drop-oldest by default) sheds the stalest data first.
// A single drain goroutine pops items in budget-sized batches and fans each
// message out to the listeners registered for its subscription, which is
// what preserves per-subject delivery order across all listeners.
//
// All components are safe for concurrent use. Construct a Multiplexer with
// New, register interest with Subscribe, and read widget history with
// GetBuffer. Nothing here persists beyond the process.
package mux
