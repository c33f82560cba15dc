// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-io: a single-goroutine event loop that
// owns all list mutation of a connection, a clock-driven timer scheduler that
// re-dispatches timer callbacks onto a loop, and a worker executor for
// request processing.
package concurrency
