// Package suspend runs accessor logic on one cooperative logical thread
// per device session and lets that logic wait on blocking I/O without
// holding the thread.
//
// A Scheduler owns a single turn. Every unit of work is a Task; a task runs
// only while it holds the turn, so adapter code never needs its own locks
// around session state. When a task has to wait (HTTP request, socket dial,
// radio acquisition, mailbox receive) it calls Await or Recv, which hand
// the turn to other tasks for the duration of the wait and take it back
// before returning:
//
//	state, err := suspend.Await(t, 3*time.Second, func(ctx context.Context) ([]byte, error) {
//	    return client.get(ctx, url)
//	})
//
// Await always needs a timeout. Zero or negative timeouts fail immediately
// with fault.ErrConfiguration; an expired timeout fails with
// fault.ErrTransportFailure. Timeouts are terminal for that attempt, the
// scheduler never retries.
//
// Suspensions issued one after another by the same task resume in issue
// order. Tasks of different schedulers share nothing.
package suspend
