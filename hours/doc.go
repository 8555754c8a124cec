// Package hours decides whether a ticket queue is open at a given
// instant.
//
// A queue's availability is described by weekly recurring windows
// (minute-of-day intervals per weekday), calendar-date holiday
// overrides, and an enabled flag, all evaluated in the queue's own
// timezone. Evaluation is pure: no cached state, no background timers.
// The dispatcher consults it to gate pulls; channel handlers consult
// it to pick auto-reply messages.
package hours
