package schedulecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError is returned by every parser below instead of a bare
// error, carrying the human-readable diagnostic spec §4.2.5 requires.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ValidateScheduleParams enforces the range/ordering rules shared by every
// scheduling window: 0<=start<=23, 0<=end<=23, start<end, 1<=interval<=24,
// interval<=window. Spec §4.2.5.
func ValidateScheduleParams(startHour, endHour, intervalHours int) error {
	if startHour < 0 || startHour > 23 {
		return invalid("start hour must be between 0 and 23")
	}
	if endHour < 0 || endHour > 23 {
		return invalid("end hour must be between 0 and 23")
	}
	if startHour >= endHour {
		return invalid("start hour must be less than end hour")
	}
	if intervalHours < 1 || intervalHours > 24 {
		return invalid("interval must be between 1 and 24 hours")
	}
	dailyHours := endHour - startHour
	if intervalHours > dailyHours {
		return invalid("interval (%dh) is longer than daily window (%dh)", intervalHours, dailyHours)
	}
	return nil
}

// ScheduleInput is the parsed form of a "start_hour end_hour interval_hours" line.
type ScheduleInput struct {
	StartHour     int
	EndHour       int
	IntervalHours int
}

// ParseScheduleInput parses "10 20 2" style input. Spec §4.2.5.
func ParseScheduleInput(text string) (ScheduleInput, error) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) != 3 {
		return ScheduleInput{}, invalid("provide 3 numbers: start_hour end_hour interval_hours (e.g. 10 20 2)")
	}

	startHour, err1 := strconv.Atoi(parts[0])
	endHour, err2 := strconv.Atoi(parts[1])
	intervalHours, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return ScheduleInput{}, invalid("provide valid numbers for scheduling parameters")
	}

	if err := ValidateScheduleParams(startHour, endHour, intervalHours); err != nil {
		return ScheduleInput{}, err
	}
	return ScheduleInput{StartHour: startHour, EndHour: endHour, IntervalHours: intervalHours}, nil
}

// DateInput is the parsed form of a "YYYY-MM-DD HH:MM interval" line.
type DateInput struct {
	Start         time.Time
	IntervalHours int
}

// ParseDateInput parses "2025-07-25 10:00 2" style input, localizing the
// result to loc and rejecting dates not strictly in the future of now.
// Spec §4.2.5.
func ParseDateInput(text string, loc *time.Location, now time.Time) (DateInput, error) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) != 3 {
		return DateInput{}, invalid("provide date, time and interval (e.g., '2025-07-25 10:00 2')")
	}

	dateStr, timeStr, intervalStr := parts[0], parts[1], parts[2]

	dateParts := strings.Split(dateStr, "-")
	if len(dateParts) != 3 {
		return DateInput{}, invalid("date must be in YYYY-MM-DD format")
	}
	year, err1 := strconv.Atoi(dateParts[0])
	month, err2 := strconv.Atoi(dateParts[1])
	day, err3 := strconv.Atoi(dateParts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return DateInput{}, invalid("invalid date format. Use YYYY-MM-DD")
	}

	timeParts := strings.Split(timeStr, ":")
	if len(timeParts) != 2 {
		return DateInput{}, invalid("time must be in HH:MM format")
	}
	hour, err4 := strconv.Atoi(timeParts[0])
	minute, err5 := strconv.Atoi(timeParts[1])
	if err4 != nil || err5 != nil {
		return DateInput{}, invalid("invalid time format. Use HH:MM")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return DateInput{}, invalid("invalid time. Hour: 0-23, Minute: 0-59")
	}

	intervalHours, err6 := strconv.Atoi(intervalStr)
	if err6 != nil || intervalHours <= 0 {
		return DateInput{}, invalid("interval must be a positive number")
	}

	start := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if !start.After(now) {
		return DateInput{}, invalid("start time must be in the future")
	}

	return DateInput{Start: start, IntervalHours: intervalHours}, nil
}

// BulkEditInput is the parsed form of a bulk redistribution command,
// generalizing ParseScheduleInput with an optional interval, an optional
// start date, and an optional "@channel" marker. Spec.md §4.2.5 plus the
// original implementation's bulk-edit grammar (SPEC_FULL §C.6):
//
//	"10 20"                        auto interval, starting tomorrow
//	"10 20 2"                      2h intervals, starting tomorrow
//	"10 20 2 2025-07-25"           2h intervals, specific date
//	"10 20 @channel"               channel-scoped, auto interval
//	"10 20 2 2025-07-25 @channel"  fully specified
type BulkEditInput struct {
	StartHour     int
	EndHour       int
	IntervalHours int // 0 means auto-calculate
	ChannelMarker string
	StartDate     *time.Time
}

// ParseBulkEditInput parses the grammar above.
func ParseBulkEditInput(text string, loc *time.Location, now time.Time) (BulkEditInput, error) {
	fields := strings.Fields(strings.TrimSpace(text))

	var channelMarker string
	parts := make([]string, 0, len(fields))
	for _, p := range fields {
		if strings.HasPrefix(p, "@") {
			if channelMarker == "" {
				channelMarker = p
			}
			continue
		}
		parts = append(parts, p)
	}

	if len(parts) < 2 || len(parts) > 4 {
		return BulkEditInput{}, invalid("provide start hour, end hour, and optionally interval and date.\n" +
			"Examples:\n• 10 20 (auto interval, tomorrow)\n• 10 20 2 (2 hour intervals, tomorrow)\n" +
			"• 10 20 2 2025-07-25 (2 hour intervals, specific date)")
	}

	startHour, err := strconv.Atoi(parts[0])
	if err != nil {
		return BulkEditInput{}, invalid("invalid format. Use numbers for hours/interval and YYYY-MM-DD for date.\nExample: 10 20 2 2025-07-25")
	}
	endHour, err := strconv.Atoi(parts[1])
	if err != nil {
		return BulkEditInput{}, invalid("invalid format. Use numbers for hours/interval and YYYY-MM-DD for date.\nExample: 10 20 2 2025-07-25")
	}

	var intervalHours int
	var startDate *time.Time

	midnightNow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if len(parts) >= 3 {
		if n, convErr := strconv.Atoi(parts[2]); convErr == nil {
			intervalHours = n
			if intervalHours < 1 || intervalHours > 24 {
				return BulkEditInput{}, invalid("interval must be between 1 and 24 hours")
			}
			if len(parts) == 4 {
				d, dateErr := parseISODate(parts[3], loc)
				if dateErr != nil {
					return BulkEditInput{}, invalid("invalid date format. Use YYYY-MM-DD format.\nExample: 2025-07-25")
				}
				if d.Before(midnightNow) {
					return BulkEditInput{}, invalid("start date cannot be in the past")
				}
				startDate = &d
			}
		} else {
			d, dateErr := parseISODate(parts[2], loc)
			if dateErr != nil {
				return BulkEditInput{}, invalid("third parameter must be either interval (1-24) or date (YYYY-MM-DD)")
			}
			if d.Before(midnightNow) {
				return BulkEditInput{}, invalid("start date cannot be in the past")
			}
			startDate = &d
			intervalHours = 0
		}
	}

	if startHour < 0 || startHour > 23 {
		return BulkEditInput{}, invalid("start hour must be between 0 and 23")
	}
	if endHour < 0 || endHour > 23 {
		return BulkEditInput{}, invalid("end hour must be between 0 and 23")
	}
	if startHour >= endHour {
		return BulkEditInput{}, invalid("start hour must be less than end hour")
	}
	if endHour-startHour < 1 {
		return BulkEditInput{}, invalid("time range must be at least 1 hour")
	}
	if intervalHours > 0 && intervalHours > endHour-startHour {
		return BulkEditInput{}, invalid("interval (%dh) cannot be longer than time range (%dh)", intervalHours, endHour-startHour)
	}

	return BulkEditInput{
		StartHour:     startHour,
		EndHour:       endHour,
		IntervalHours: intervalHours,
		ChannelMarker: channelMarker,
		StartDate:     startDate,
	}, nil
}

func parseISODate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
