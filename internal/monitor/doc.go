// Package monitor reports connections as they appear in the OS connection table.
//
// A Monitor runs two workers while started:
//
//   - capture polls the Enumerator once per interval, diffs the resulting
//     Snapshot against the previous one and enqueues one ConnectionEvent per
//     new ConnectionKey onto a bounded queue;
//   - process drains the queue in FIFO order and hands each event to the Sink.
//
// Enumeration failures are logged and retried on the next tick; they never
// stop the loop. Stop signals both workers and waits for each one at most
// JoinTimeout.
package monitor
