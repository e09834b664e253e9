// Package accessor defines the contract between the host and a device
// accessor, plus the dispatch glue shared by every adapter.
//
// Lifecycle, driven by the host:
//
//  1. Setup declares ports and bundles and validates parameters. No I/O.
//  2. The host seals the registry and creates the device session.
//  3. Init runs as a task on the session scheduler. It binds port handlers
//     and establishes the session, suspending on any blocking I/O.
//  4. Reads and writes are dispatched to the bound handlers, each as its
//     own task on the same scheduler.
//  5. Close releases anything the session does not own; the host then
//     closes the session.
//
// Push-based adapters use BindCached so their output ports read straight
// from the session's last-known-value cache, and BindCachedBundle so a
// bundle read takes every member from the same update.
package accessor
