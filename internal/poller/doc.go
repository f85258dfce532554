// Package poller runs the periodic refresh tasks behind the dashboard.
//
// A [Scheduler] runs every [Task] once on start, then ticks at the greatest
// common divisor of the task intervals and launches the tasks that are due.
// Runs are not serialized: if a run outlasts its interval the next one is
// launched anyway, so two runs of the same task may be in flight at once and
// whichever resolves last wins. Callers that render into shared state must
// tolerate that ordering.
//
// Tasks are cancellable individually via [Scheduler.Cancel] and all together
// via [Scheduler.Stop]. A panicking task is recovered and reported as an
// error carrying a correlation ID; the full stack is logged.
package poller
