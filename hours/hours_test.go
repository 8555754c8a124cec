package hours

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/tenant"
)

// tuesday returns 2024-06-04 (a Tuesday) at the given local time in loc.
func tuesday(t *testing.T, loc *time.Location, hour, min int) time.Time {
	t.Helper()
	return time.Date(2024, time.June, 4, hour, min, 0, 0, loc)
}

func utcSchedule(rules []Rule, holidays ...Holiday) Schedule {
	return Schedule{
		Config:   Config{Queue: "billing", Timezone: "UTC", Enabled: true},
		Rules:    rules,
		Holidays: holidays,
	}
}

// officeHours is the canonical case: Tuesday 09:00 to 18:00.
var officeHours = []Rule{{Queue: "billing", Weekday: 2, StartMinute: 540, EndMinute: 1080}}

func mustEvaluate(t *testing.T, sched Schedule, at time.Time) Decision {
	t.Helper()
	d, err := Evaluate(sched, at)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return d
}

// ---------------------------------------------------------------------------
// Weekly windows
// ---------------------------------------------------------------------------

func TestEvaluate_OpenAtWindowStart(t *testing.T) {
	d := mustEvaluate(t, utcSchedule(officeHours), tuesday(t, time.UTC, 9, 0))
	if !d.Open || d.Reason != ReasonOpen {
		t.Fatalf("expected open at 09:00, got %+v", d)
	}
	if d.NextOpen != nil {
		t.Fatalf("open decision must not carry next-open, got %v", d.NextOpen)
	}
}

func TestEvaluate_ClosedBeforeOpening(t *testing.T) {
	d := mustEvaluate(t, utcSchedule(officeHours), tuesday(t, time.UTC, 8, 59))
	if d.Open || d.Reason != ReasonClosed {
		t.Fatalf("expected closed at 08:59, got %+v", d)
	}
	want := tuesday(t, time.UTC, 9, 0)
	if d.NextOpen == nil || !d.NextOpen.Equal(want) {
		t.Fatalf("expected next-open %v, got %v", want, d.NextOpen)
	}
}

func TestEvaluate_ClosedAtWindowEnd_HalfOpen(t *testing.T) {
	// 18:00 is outside [09:00, 18:00); next-open rolls to next week's
	// Tuesday because no other day has rules.
	d := mustEvaluate(t, utcSchedule(officeHours), tuesday(t, time.UTC, 18, 0))
	if d.Open {
		t.Fatal("expected closed at 18:00 (half-open interval)")
	}
	want := tuesday(t, time.UTC, 9, 0).AddDate(0, 0, 7)
	if d.NextOpen == nil || !d.NextOpen.Equal(want) {
		t.Fatalf("expected next-open %v, got %v", want, d.NextOpen)
	}
}

func TestEvaluate_BackToBackWindows_NoGapNoOverlap(t *testing.T) {
	sched := utcSchedule([]Rule{
		{Queue: "billing", Weekday: 2, StartMinute: 720, EndMinute: 780},
		{Queue: "billing", Weekday: 2, StartMinute: 780, EndMinute: 840},
	})

	for _, tc := range []struct {
		hour, min int
		open      bool
	}{
		{11, 59, false},
		{12, 0, true},
		{12, 59, true},
		{13, 0, true}, // boundary belongs to the second window
		{13, 59, true},
		{14, 0, false},
	} {
		d := mustEvaluate(t, sched, tuesday(t, time.UTC, tc.hour, tc.min))
		if d.Open != tc.open {
			t.Errorf("at %02d:%02d open=%v, want %v", tc.hour, tc.min, d.Open, tc.open)
		}
	}
}

func TestEvaluate_FullDayWindow(t *testing.T) {
	sched := utcSchedule([]Rule{{Queue: "billing", Weekday: 2, StartMinute: 0, EndMinute: 1440}})

	for _, at := range []time.Time{
		tuesday(t, time.UTC, 0, 0),
		tuesday(t, time.UTC, 12, 30),
		tuesday(t, time.UTC, 23, 59),
	} {
		if d := mustEvaluate(t, sched, at); !d.Open {
			t.Errorf("expected full-day window open at %v", at)
		}
	}
}

func TestEvaluate_OverlappingWindowsActAsUnion(t *testing.T) {
	sched := utcSchedule([]Rule{
		{Queue: "billing", Weekday: 2, StartMinute: 540, EndMinute: 720},
		{Queue: "billing", Weekday: 2, StartMinute: 600, EndMinute: 1080},
	})
	if d := mustEvaluate(t, sched, tuesday(t, time.UTC, 10, 30)); !d.Open {
		t.Fatal("expected open inside overlapping windows")
	}
}

// ---------------------------------------------------------------------------
// Holidays
// ---------------------------------------------------------------------------

func TestEvaluate_HolidayOverridesWeeklyRule(t *testing.T) {
	sched := utcSchedule(officeHours, Holiday{Queue: "billing", Date: "2024-06-04", Label: "Founders Day"})

	d := mustEvaluate(t, sched, tuesday(t, time.UTC, 10, 0))
	if d.Open || d.Reason != ReasonHoliday {
		t.Fatalf("expected holiday closure, got %+v", d)
	}
	// The whole holiday is skipped; next-open is next week's Tuesday.
	want := tuesday(t, time.UTC, 9, 0).AddDate(0, 0, 7)
	if d.NextOpen == nil || !d.NextOpen.Equal(want) {
		t.Fatalf("expected next-open %v, got %v", want, d.NextOpen)
	}
}

func TestEvaluate_NextOpenSkipsHolidayDays(t *testing.T) {
	// Open Tuesday and Wednesday; Wednesday is a holiday. A pull after
	// Tuesday close must land on next week's Tuesday.
	sched := utcSchedule([]Rule{
		{Queue: "billing", Weekday: 2, StartMinute: 540, EndMinute: 1080},
		{Queue: "billing", Weekday: 3, StartMinute: 540, EndMinute: 1080},
	}, Holiday{Queue: "billing", Date: "2024-06-05", Label: "Midweek holiday"})

	d := mustEvaluate(t, sched, tuesday(t, time.UTC, 19, 0))
	want := tuesday(t, time.UTC, 9, 0).AddDate(0, 0, 7)
	if d.NextOpen == nil || !d.NextOpen.Equal(want) {
		t.Fatalf("expected next-open %v, got %v", want, d.NextOpen)
	}
}

func TestEvaluate_NoNextOpenWithinWindow(t *testing.T) {
	// Only Wednesday rules, and next Wednesday is a holiday: the walk
	// finds nothing within a week. Nil is the representable "unknown";
	// it must not be an error.
	sched := utcSchedule(
		[]Rule{{Queue: "billing", Weekday: 3, StartMinute: 540, EndMinute: 1080}},
		Holiday{Queue: "billing", Date: "2024-06-05", Label: "Midweek holiday"},
	)

	d := mustEvaluate(t, sched, tuesday(t, time.UTC, 10, 0))
	if d.Open {
		t.Fatal("expected closed")
	}
	if d.NextOpen != nil {
		t.Fatalf("expected no next-open within the week, got %v", d.NextOpen)
	}
}

func TestEvaluate_NoRulesAtAll(t *testing.T) {
	d := mustEvaluate(t, utcSchedule(nil), tuesday(t, time.UTC, 10, 0))
	if d.Open || d.NextOpen != nil {
		t.Fatalf("queue with no rules is closed with no next-open, got %+v", d)
	}
}

// ---------------------------------------------------------------------------
// Config gating and timezone handling
// ---------------------------------------------------------------------------

func TestEvaluate_DisabledQueue(t *testing.T) {
	sched := utcSchedule(officeHours)
	sched.Config.Enabled = false

	d := mustEvaluate(t, sched, tuesday(t, time.UTC, 10, 0))
	if d.Open || d.Reason != ReasonDisabled {
		t.Fatalf("expected closed-by-config, got %+v", d)
	}
	if d.NextOpen != nil {
		t.Fatal("disabled queue must not compute next-open")
	}
}

func TestEvaluate_ConvertsToQueueTimezone(t *testing.T) {
	sched := utcSchedule(officeHours)
	sched.Config.Timezone = "America/Sao_Paulo" // UTC-3, no DST

	// 11:30 UTC is 08:30 local: still closed.
	d := mustEvaluate(t, sched, time.Date(2024, time.June, 4, 11, 30, 0, 0, time.UTC))
	if d.Open {
		t.Fatal("expected closed at 08:30 local")
	}
	// 12:00 UTC is 09:00 local: open.
	d = mustEvaluate(t, sched, time.Date(2024, time.June, 4, 12, 0, 0, 0, time.UTC))
	if !d.Open {
		t.Fatal("expected open at 09:00 local")
	}
}

func TestEvaluate_BadTimezone(t *testing.T) {
	sched := utcSchedule(officeHours)
	sched.Config.Timezone = "Mars/Olympus_Mons"
	if _, err := Evaluate(sched, tuesday(t, time.UTC, 10, 0)); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

// ---------------------------------------------------------------------------
// Rule validation
// ---------------------------------------------------------------------------

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"valid", Rule{Weekday: 2, StartMinute: 540, EndMinute: 1080}, true},
		{"full day", Rule{Weekday: 1, StartMinute: 0, EndMinute: 1440}, true},
		{"weekday zero", Rule{Weekday: 0, StartMinute: 0, EndMinute: 60}, false},
		{"weekday eight", Rule{Weekday: 8, StartMinute: 0, EndMinute: 60}, false},
		{"start negative", Rule{Weekday: 2, StartMinute: -1, EndMinute: 60}, false},
		{"start at day end", Rule{Weekday: 2, StartMinute: 1440, EndMinute: 1440}, false},
		{"empty window", Rule{Weekday: 2, StartMinute: 600, EndMinute: 600}, false},
		{"inverted window", Rule{Weekday: 2, StartMinute: 700, EndMinute: 600}, false},
		{"end past day", Rule{Weekday: 2, StartMinute: 600, EndMinute: 1441}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

type fakeScheduleStore struct {
	schedules map[string]*Schedule
}

func (s *fakeScheduleStore) GetSchedule(_ context.Context, _ tenant.Binding, queue string) (*Schedule, error) {
	sched, ok := s.schedules[queue]
	if !ok {
		return nil, nexdesk.ErrQueueNotFound
	}
	return sched, nil
}

func TestService_ZeroInstantMeansNow(t *testing.T) {
	sched := utcSchedule(officeHours)
	svc := NewService(
		&fakeScheduleStore{schedules: map[string]*Schedule{"billing": &sched}},
		WithClock(func() time.Time { return tuesday(t, time.UTC, 10, 0) }),
	)

	d, err := svc.IsOpen(context.Background(), tenant.Binding{Partition: "tenant_acme"}, "billing", time.Time{})
	if err != nil {
		t.Fatalf("is open: %v", err)
	}
	if !d.Open {
		t.Fatal("expected open at pinned now")
	}
}

func TestService_ExplicitInstant(t *testing.T) {
	sched := utcSchedule(officeHours)
	svc := NewService(
		&fakeScheduleStore{schedules: map[string]*Schedule{"billing": &sched}},
		WithClock(func() time.Time { return tuesday(t, time.UTC, 10, 0) }),
	)

	// What-if query for a closed instant must ignore the clock.
	d, err := svc.IsOpen(context.Background(), tenant.Binding{Partition: "tenant_acme"}, "billing", tuesday(t, time.UTC, 4, 0))
	if err != nil {
		t.Fatalf("is open: %v", err)
	}
	if d.Open {
		t.Fatal("expected closed for explicit early instant")
	}
}

func TestService_UnknownQueue(t *testing.T) {
	svc := NewService(&fakeScheduleStore{schedules: map[string]*Schedule{}})
	_, err := svc.IsOpen(context.Background(), tenant.Binding{}, "ghost", time.Time{})
	if !errors.Is(err, nexdesk.ErrQueueNotFound) {
		t.Fatalf("expected ErrQueueNotFound, got %v", err)
	}
}
