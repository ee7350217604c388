package calendar

import (
	"errors"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestHasOverlap_NoOverlap(t *testing.T) {
	newRange := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 10, 0),
		End:   mustTime(t, 2025, 1, 1, 11, 0),
	}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}

	has, conflicts := HasOverlap(newRange, existing)
	if has {
		t.Fatalf("expected no overlap, got conflicts: %+v", conflicts)
	}
}

func TestHasOverlap_OverlapFound(t *testing.T) {
	newRange := TimeRange{
		Start: mustTime(t, 2025, 1, 1, 10, 30),
		End:   mustTime(t, 2025, 1, 1, 11, 30),
	}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}

	has, conflicts := HasOverlap(newRange, existing)
	if !has {
		t.Fatalf("expected overlap, got none")
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
}

func TestOverlaps_DinnerWindows(t *testing.T) {
	booked, _ := WindowOf(mustTime(t, 2024, 6, 1, 19, 0), time.Hour)

	cases := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"half hour later", mustTime(t, 2024, 6, 1, 19, 30), true},
		{"back to back", mustTime(t, 2024, 6, 1, 20, 0), false},
		{"ends at start", mustTime(t, 2024, 6, 1, 18, 0), false},
		{"same start", mustTime(t, 2024, 6, 1, 19, 0), true},
		{"next day", mustTime(t, 2024, 6, 2, 19, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := WindowOf(tc.start, time.Hour)
			if got := booked.Overlaps(w); got != tc.want {
				t.Fatalf("Overlaps(%s, %s) = %v, want %v", booked, w, got, tc.want)
			}
		})
	}
}

// Overlap must agree with a minute-by-minute occupancy check and be symmetric.
func TestOverlaps_Property(t *testing.T) {
	base := mustTime(t, 2024, 6, 1, 0, 0)
	f := func(s1, d1, s2, d2 uint16) bool {
		a, _ := WindowOf(base.Add(time.Duration(s1%1440)*time.Minute), time.Duration(d1%240+1)*time.Minute)
		b, _ := WindowOf(base.Add(time.Duration(s2%1440)*time.Minute), time.Duration(d2%240+1)*time.Minute)

		shared := false
		for m := a.Start; m.Before(a.End); m = m.Add(time.Minute) {
			if !m.Before(b.Start) && m.Before(b.End) {
				shared = true
				break
			}
		}
		return a.Overlaps(b) == shared && a.Overlaps(b) == b.Overlaps(a)
	}
	cfg := &quick.Config{MaxCount: 500, Rand: rand.New(rand.NewSource(42))}
	if err := quick.Check(f, cfg); err != nil {
		t.Fatalf("overlap property violated: %v", err)
	}
}

func TestWindowOf_InvalidDuration(t *testing.T) {
	_, err := WindowOf(mustTime(t, 2025, 1, 1, 10, 0), 0)
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestParseWindow_LocalToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)

	tr, err := ParseWindow("2024-06-01", "19:00", 60, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustTime(t, 2024, 6, 1, 16, 0)
	if !tr.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", tr.Start, want)
	}
	if d := tr.End.Sub(tr.Start); d != time.Hour {
		t.Fatalf("duration = %v, want 1h", d)
	}
	if tr.Start.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", tr.Start.Location())
	}
}

func TestParseWindow_Invalid(t *testing.T) {
	cases := []struct {
		name        string
		date, clock string
		dur         int
		want        error
	}{
		{"bad date", "2024-13-01", "19:00", 60, ErrInvalidDate},
		{"bad time", "2024-06-01", "25:00", 60, ErrInvalidClockTime},
		{"zero duration", "2024-06-01", "19:00", 0, ErrInvalidDuration},
		{"negative duration", "2024-06-01", "19:00", -30, ErrInvalidDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseWindow(tc.date, tc.clock, tc.dur, time.UTC)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDateOf_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 02:00 UTC on June 2nd is still June 1st in UTC-5.
	got := DateOf(mustTime(t, 2024, 6, 2, 2, 0), loc)
	want := mustTime(t, 2024, 6, 1, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("DateOf = %v, want %v", got, want)
	}
	if !SameDay(mustTime(t, 2024, 6, 2, 2, 0), mustTime(t, 2024, 6, 1, 20, 0), loc) {
		t.Fatalf("expected same local day")
	}
}

func TestFixedClock_Advance(t *testing.T) {
	c := NewFixedClock(mustTime(t, 2024, 6, 1, 12, 0))
	c.Advance(90 * time.Minute)
	if want := mustTime(t, 2024, 6, 1, 13, 30); !c.Now().Equal(want) {
		t.Fatalf("Now = %v, want %v", c.Now(), want)
	}
}
