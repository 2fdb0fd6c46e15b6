package companion

import (
	"fmt"
	"time"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// PeriodOf buckets the wall-clock hour of now in its own location.
func PeriodOf(now time.Time) Period {
	switch hour := now.Hour(); {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 17:
		return PeriodAfternoon
	case hour >= 17 && hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

var greetings = map[Period][]string{
	PeriodMorning: {
		"Good morning sabko! Chai ready hai? ☀️",
		"Subah ho gayi doston, uth jao! 🌅",
	},
	PeriodAfternoon: {
		"Good afternoon! Lunch ho gaya sabka? 🍛",
		"Dopahar ki neend se pehle ek hello! 😄",
	},
	PeriodEvening: {
		"Good evening everyone! Din kaisa raha? 🌆",
		"Shaam ho gayi, thodi baatein ho jaye? ☕",
	},
	PeriodNight: {
		"Good night doston, sweet dreams! 🌙",
		"Raat ho gayi, phone rakho aur so jao! 😴",
	},
}

// Greeting answers what should be said to rooms for the period containing
// now. When it is said is up to the caller.
func (e *Engine) Greeting(now time.Time) string {
	return e.pick(greetings[PeriodOf(now)])
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
