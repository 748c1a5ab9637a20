package domain

import (
	"testing"
	"time"
)

func TestWeekdayOf_MondayIsZero(t *testing.T) {
	tests := []struct {
		date time.Time
		want Weekday
	}{
		{time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), Monday},
		{time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), Wednesday},
		{time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), Sunday},
	}
	for _, tt := range tests {
		if got := WeekdayOf(tt.date); got != tt.want {
			t.Errorf("WeekdayOf(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "09:00"},
		{in: "17:30:15", want: "17:30:15"},
		{in: "08:05:00.000000", want: "08:05"},
		{in: "24:00", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09-00", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClockTime(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClockTime(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClockTime(%q) error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseClockTime(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClockTimeScan(t *testing.T) {
	var c ClockTime
	if err := c.Scan([]byte("13:45:00")); err != nil || c.String() != "13:45" {
		t.Fatalf("Scan([]byte) = %s, %v", c, err)
	}
	if err := c.Scan(time.Date(0, 1, 1, 7, 15, 0, 0, time.UTC)); err != nil || c.String() != "07:15" {
		t.Fatalf("Scan(time.Time) = %s, %v", c, err)
	}
	if err := c.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}

	v, err := MustClockTime("09:30").Value()
	if err != nil || v != "09:30:00" {
		t.Fatalf("Value = %v, %v", v, err)
	}
}

func TestDoctorScheduleBounds_UsesLocation(t *testing.T) {
	loc := time.FixedZone("clinic", 2*3600)
	s := DoctorSchedule{StartTime: MustClockTime("09:00"), EndTime: MustClockTime("17:00")}

	// 23:30 UTC on Monday is already Tuesday in the clinic.
	day := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	start, end := s.Bounds(day, loc)
	if want := time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %s, want %s", start.UTC(), want)
	}
	if want := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end = %s, want %s", end.UTC(), want)
	}
}
