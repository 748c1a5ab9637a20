package domain

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Weekday counts from Monday=0 to Sunday=6.
type Weekday int16

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return "weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// ClockTime is a wall-clock time of day with second precision.
type ClockTime struct {
	seconds int32
}

func NewClockTime(hour, minute, second int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return ClockTime{}, fmt.Errorf("invalid time of day %02d:%02d:%02d", hour, minute, second)
	}
	return ClockTime{seconds: int32(hour*3600 + minute*60 + second)}, nil
}

func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClockTime accepts HH:MM and HH:MM:SS, ignoring fractional seconds.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ClockTime{}, fmt.Errorf("invalid time of day %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return ClockTime{}, fmt.Errorf("invalid time of day %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return ClockTime{}, fmt.Errorf("invalid time of day %q", s)
		}
		nums[i] = n
	}
	return NewClockTime(nums[0], nums[1], nums[2])
}

func (c ClockTime) Hour() int   { return int(c.seconds / 3600) }
func (c ClockTime) Minute() int { return int(c.seconds % 3600 / 60) }
func (c ClockTime) Second() int { return int(c.seconds % 60) }

func (c ClockTime) Before(o ClockTime) bool { return c.seconds < o.seconds }

// String renders HH:MM, adding seconds only when they are set.
func (c ClockTime) String() string {
	if c.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On combines c with the calendar date of day as observed in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), 0, loc)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second()), nil
}

func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	case time.Time:
		parsed, err := NewClockTime(v.Hour(), v.Minute(), v.Second())
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case nil:
		*c = ClockTime{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into ClockTime", src)
}

type DoctorSchedule struct {
	bun.BaseModel `bun:"table:doctor_schedules"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	DoctorID    uuid.UUID `bun:"doctor_id,notnull,type:uuid"`
	DayOfWeek   Weekday   `bun:"day_of_week,notnull"`
	StartTime   ClockTime `bun:"start_time,notnull,type:time"`
	EndTime     ClockTime `bun:"end_time,notnull,type:time"`
	IsAvailable bool      `bun:"is_available,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// Bounds returns the absolute working window for the date of day in loc.
func (s DoctorSchedule) Bounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	return s.StartTime.On(day, loc), s.EndTime.On(day, loc)
}

func (s *DoctorSchedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}
