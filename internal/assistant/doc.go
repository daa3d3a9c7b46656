// Package assistant answers questions about the user's calendar with a
// language model that can call the tool gateway, and writes short summaries
// of individual bookings.
//
// Ask applies a post-hoc cost guard: the model call is already billed when
// its usage is known, so an answer whose estimated cost exceeds the limit is
// discarded and a *CostExceededError is returned instead.
package assistant
