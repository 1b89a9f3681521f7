// Package engine keeps one client's view of a conversation consistent.
//
// # Overview
//
// The Engine owns the active session id, the loading flag, and the timeline
// of the active session. Three actors touch that state concurrently:
//
//   - The user, through NewSession, SwitchTo and Send
//   - The realtime feed, through Deliver (or Run over a channel)
//   - Timers and in-flight calls completing after the fact
//
// All of them go through a single mutex. Network calls (agent dispatch,
// history fetch) run outside the lock and re-check the session generation
// before they write anything back.
//
// # Sessions and Generations
//
// Every NewSession or SwitchTo increments a generation counter, clears the
// timeline and loading flag, and stops the response timer. A result tagged
// with an older generation, or a row tagged with another session id, is
// dropped silently:
//
//	eng.SwitchTo(ctx, "B")
//	eng.Deliver(rowForA) // false: A is no longer active
//
// # Dispatch
//
// Send appends the user message right away, using the request id as the
// message id, and sets loading. The gateway stores the human row under the
// same id, so the realtime echo of that row is a duplicate. Loading clears
// when an agent row for the session arrives, the dispatch fails, or the
// response timeout fires. A second Send while loading returns chat.ErrBusy.
//
// A failed dispatch leaves its optimistic message in the timeline. The
// gateway never stored that row, so switching back to the session later
// hydrates a timeline without it.
//
// # Observing
//
// Updates returns a buffered channel of state changes. Sends never block,
// so a slow observer loses updates. The next update it does receive carries
// the number it lost in Missed, and the observer should redraw from
// Snapshot and Loading:
//
//	for u := range eng.Updates() {
//		if u.Missed > 0 {
//			render(eng.Snapshot(), eng.Loading())
//		}
//	}
//
// The optimistic echo of a Send is flagged Local.
package engine
