package hours

import (
	"fmt"
	"sort"
	"time"
)

// MinutesPerDay is the number of minutes in a local day.
const MinutesPerDay = 24 * 60

// Reason explains an availability decision.
type Reason string

const (
	// ReasonOpen means a weekly window contains the instant.
	ReasonOpen Reason = "open"
	// ReasonClosed means no weekly window contains the instant.
	ReasonClosed Reason = "closed"
	// ReasonHoliday means a holiday forces the whole local day closed.
	ReasonHoliday Reason = "holiday"
	// ReasonDisabled means the queue is closed by configuration.
	ReasonDisabled Reason = "closed-by-config"
)

// Rule is one recurring weekly open window. Multiple rules per weekday
// are allowed; overlapping windows behave as their union.
type Rule struct {
	// Queue is the queue this rule belongs to.
	Queue string `json:"queue"`

	// Weekday is the ISO weekday, 1 (Monday) through 7 (Sunday).
	Weekday int `json:"weekday"`

	// StartMinute is the inclusive window start, minutes since local
	// midnight, in [0, 1440).
	StartMinute int `json:"start_minute"`

	// EndMinute is the exclusive window end, in (StartMinute, 1440].
	EndMinute int `json:"end_minute"`
}

// Contains reports whether the half-open window [StartMinute, EndMinute)
// contains the given minute of day. Half-open membership means
// back-to-back windows neither overlap nor leave a gap at the shared
// boundary.
func (r Rule) Contains(minute int) bool {
	return minute >= r.StartMinute && minute < r.EndMinute
}

// Validate checks the rule's numeric bounds.
func (r Rule) Validate() error {
	if r.Weekday < 1 || r.Weekday > 7 {
		return fmt.Errorf("hours: weekday %d out of range [1,7]", r.Weekday)
	}
	if r.StartMinute < 0 || r.StartMinute >= MinutesPerDay {
		return fmt.Errorf("hours: start minute %d out of range [0,1440)", r.StartMinute)
	}
	if r.EndMinute <= r.StartMinute || r.EndMinute > MinutesPerDay {
		return fmt.Errorf("hours: end minute %d out of range (%d,1440]", r.EndMinute, r.StartMinute)
	}
	return nil
}

// Holiday forces a queue closed for one whole local calendar day,
// regardless of weekly rules.
type Holiday struct {
	Queue string `json:"queue"`
	// Date is the local calendar date, "2006-01-02".
	Date string `json:"date"`
	// Label is a human-readable name for the holiday.
	Label string `json:"label"`
}

// Config is the per-queue availability configuration.
type Config struct {
	Queue string `json:"queue"`

	// Timezone is the IANA zone name all rules and holidays are
	// interpreted in, e.g. "America/Sao_Paulo".
	Timezone string `json:"timezone"`

	// Enabled gates the queue as a whole. A disabled queue is always
	// closed and no next-open is computed.
	Enabled bool `json:"enabled"`

	// PreOpenMessage is sent to customers writing in before opening.
	PreOpenMessage string `json:"pre_open_message,omitempty"`

	// ClosedMessage is sent to customers writing in after closing.
	ClosedMessage string `json:"closed_message,omitempty"`
}

// Schedule bundles everything needed to evaluate one queue.
type Schedule struct {
	Config   Config
	Rules    []Rule
	Holidays []Holiday
}

// Decision is the outcome of an availability evaluation.
type Decision struct {
	// Open reports whether the queue accepts work at the instant.
	Open bool `json:"open"`

	// Reason explains the decision.
	Reason Reason `json:"reason"`

	// NextOpen is the next opening instant when the queue is closed.
	// Nil when the queue is open, when it is disabled, or when no rule
	// opens it within the one-week lookahead. Callers must treat nil
	// as "unknown", not as an error.
	NextOpen *time.Time `json:"next_open,omitempty"`
}

// isoWeekday maps Go's Sunday-based weekday to ISO 1 (Monday) .. 7 (Sunday).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// localDate formats the local calendar date the way Holiday.Date stores it.
func localDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Evaluate decides whether the schedule's queue is open at the given
// instant. The instant is converted to the queue's configured timezone
// before any rule or holiday is considered.
func Evaluate(sched Schedule, at time.Time) (Decision, error) {
	if !sched.Config.Enabled {
		return Decision{Open: false, Reason: ReasonDisabled}, nil
	}

	loc, err := time.LoadLocation(sched.Config.Timezone)
	if err != nil {
		return Decision{}, fmt.Errorf("hours: load timezone %q: %w", sched.Config.Timezone, err)
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()

	holidays := make(map[string]struct{}, len(sched.Holidays))
	for _, h := range sched.Holidays {
		holidays[h.Date] = struct{}{}
	}

	if _, ok := holidays[localDate(local)]; ok {
		return Decision{
			Open:     false,
			Reason:   ReasonHoliday,
			NextOpen: nextOpen(sched.Rules, holidays, local, minute),
		}, nil
	}

	for _, r := range sched.Rules {
		if r.Weekday == isoWeekday(local) && r.Contains(minute) {
			return Decision{Open: true, Reason: ReasonOpen}, nil
		}
	}

	return Decision{
		Open:     false,
		Reason:   ReasonClosed,
		NextOpen: nextOpen(sched.Rules, holidays, local, minute),
	}, nil
}

// nextOpen computes the next opening instant after the given local
// time, or nil when no rule opens the queue within the next week.
//
// Same-day rules starting strictly after the current minute win first,
// unless the current day is itself a holiday. After that, days are
// walked one at a time up to a full week out (so a queue open one day
// a week rolls over to the same weekday next week), skipping holidays,
// and the earliest rule on the first candidate day wins. The walk is
// bounded, so the computation always terminates.
func nextOpen(rules []Rule, holidays map[string]struct{}, local time.Time, minute int) *time.Time {
	byDay := make(map[int][]Rule, 7)
	for _, r := range rules {
		byDay[r.Weekday] = append(byDay[r.Weekday], r)
	}
	for _, day := range byDay {
		sort.Slice(day, func(i, j int) bool { return day[i].StartMinute < day[j].StartMinute })
	}

	if _, holiday := holidays[localDate(local)]; !holiday {
		for _, r := range byDay[isoWeekday(local)] {
			if r.StartMinute > minute {
				return at(local, r.StartMinute)
			}
		}
	}

	for offset := 1; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)
		if _, holiday := holidays[localDate(day)]; holiday {
			continue
		}
		if rs := byDay[isoWeekday(day)]; len(rs) > 0 {
			return at(day, rs[0].StartMinute)
		}
	}
	return nil
}

// at builds the instant for a minute-of-day on day's local date.
func at(day time.Time, minute int) *time.Time {
	t := time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
	return &t
}
