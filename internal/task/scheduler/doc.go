// Package scheduler is an in-process timer facility.
//
// A Scheduler owns one background worker goroutine that runs registered work
// once after a delay, or repeatedly at a fixed rate or with a fixed delay
// between runs. Entries live in a due-time ordered min-heap; cancellation
// tombstones an entry and the worker discards it when it reaches the top.
//
// Work always runs on the worker, outside the scheduler lock, so a callback
// may reschedule or cancel itself. A panic or error in one task is logged and
// never stops the worker or affects other tasks.
//
// Default() returns a lazily created process-wide instance; hosts must call
// Shutdown when they are done with it.
package scheduler
