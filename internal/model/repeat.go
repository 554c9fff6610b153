package model

import (
	"fmt"
	"strings"
)

// Repeat is a reminder recurrence pattern.
type Repeat string

const (
	RepeatDaily    Repeat = "Daily"
	RepeatWeekdays Repeat = "Weekdays"
	RepeatWeekly   Repeat = "Weekly"
	RepeatMonthly  Repeat = "Monthly"
	RepeatYearly   Repeat = "Yearly"
	RepeatCustom   Repeat = "Custom"
)

// RepeatOptions lists the patterns in picker order.
var RepeatOptions = []Repeat{RepeatDaily, RepeatWeekdays, RepeatWeekly, RepeatMonthly, RepeatYearly, RepeatCustom}

// ParseRepeat parses a pattern name case-insensitively.
func ParseRepeat(raw string) (Repeat, error) {
	value := strings.TrimSpace(raw)
	for _, option := range RepeatOptions {
		if strings.EqualFold(value, string(option)) {
			return option, nil
		}
	}
	return "", fmt.Errorf("unknown repeat pattern %q", raw)
}
