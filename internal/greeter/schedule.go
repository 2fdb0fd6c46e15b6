package greeter

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const (
	DefaultSchedule = "0 8,13,19,22 * * *"
	defaultTimezone = "UTC"
)

type Schedule struct {
	expr     string
	next     cron.Schedule
	location *time.Location
}

// ParseSchedule parses a five-field cron expression evaluated in timezone.
func ParseSchedule(expr, timezone string) (Schedule, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		expr = DefaultSchedule
	}
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return Schedule{}, fmt.Errorf("load timezone: %w", err)
	}
	next, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("parse cron expression: %w", err)
	}
	return Schedule{expr: expr, next: next, location: location}, nil
}

func (s Schedule) String() string {
	return s.expr
}

func (s Schedule) Location() *time.Location {
	return s.location
}

// Next returns the next fire time after from, in the schedule's location.
func (s Schedule) Next(from time.Time) time.Time {
	return s.next.Next(from.In(s.location))
}
