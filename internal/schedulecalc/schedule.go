// Package schedulecalc implements the pure, deterministic schedule-time
// functions of component C3: mapping a count of posts onto a daily
// [start_hour, end_hour) window under a fixed interval or an even
// distribution policy, plus the input-parsing rules that validate operator
// supplied scheduling parameters before they reach the Store.
//
// Every function here is side-effect free and takes its "now"/anchor
// explicitly; callers supply a clock.Clock-derived time rather than this
// package reading the wall clock itself.
package schedulecalc

import "time"

// FixedInterval produces numPosts timestamps by walking hourly slots
// starting at startHour on anchor's own date; callers that schedule from
// tomorrow pass StartOfTomorrow(now) as anchor. A slot is emitted whenever startHour <= current.hour <
// endHour; the cursor then advances by intervalHours, rolling to the next
// day at startHour whenever it falls outside the window. Spec §4.2.1.
func FixedInterval(startHour, endHour, intervalHours, numPosts int, anchor time.Time) []time.Time {
	current := atHour(anchor, startHour)

	times := make([]time.Time, 0, numPosts)
	for len(times) < numPosts {
		if startHour <= current.Hour() && current.Hour() < endHour {
			times = append(times, current)
			current = current.Add(time.Duration(intervalHours) * time.Hour)
		} else {
			current = atHour(current, startHour).AddDate(0, 0, 1)
		}
	}
	return times
}

// StartOfTomorrow returns midnight of the day after now, in now's
// location. This is the default anchor spec.md §4.2.1 describes when no
// explicit anchor is supplied.
func StartOfTomorrow(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, 1)
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

// CustomDateSchedule emits start + k*intervalHours for k in [0, numPosts).
// Spec §4.2.4. Window containment against the operator's scheduling
// window is enforced by the caller.
func CustomDateSchedule(start time.Time, intervalHours, numPosts int) []time.Time {
	times := make([]time.Time, 0, numPosts)
	current := start
	for i := 0; i < numPosts; i++ {
		times = append(times, current)
		current = current.Add(time.Duration(intervalHours) * time.Hour)
	}
	return times
}

// EvenDistribution computes schedule times for numPosts across
// [startHour, endHour] starting at anchor's date. When intervalHours > 0
// it day-packs using a fixed interval (mirrors FixedInterval's per-day
// capacity); when intervalHours is 0 it auto-distributes posts evenly
// across each day's window at minute resolution. Spec §4.2.3.
func EvenDistribution(startHour, endHour, numPosts int, anchor time.Time, intervalHours int) []time.Time {
	if numPosts <= 0 {
		return nil
	}

	windowHours := endHour - startHour
	times := make([]time.Time, 0, numPosts)

	if intervalHours > 0 {
		postsPerDay := windowHours/intervalHours + 1
		if postsPerDay < 1 {
			postsPerDay = 1
		}
		day := dateOnly(anchor)
		for len(times) < numPosts {
			remaining := numPosts - len(times)
			postsToday := postsPerDay
			if remaining < postsToday {
				postsToday = remaining
			}
			hour := startHour
			for i := 0; i < postsToday; i++ {
				if hour > endHour {
					break
				}
				times = append(times, atHour(day, hour))
				hour += intervalHours
			}
			day = day.AddDate(0, 0, 1)
		}
		return times
	}

	windowMinutes := windowHours * 60
	day := dateOnly(anchor)
	for len(times) < numPosts {
		remaining := numPosts - len(times)

		if remaining == 1 {
			times = append(times, atHour(day, startHour))
			day = day.AddDate(0, 0, 1)
			continue
		}

		postsToday := windowHours + 1
		if remaining < postsToday {
			postsToday = remaining
		}

		if postsToday == 1 {
			times = append(times, atHour(day, startHour))
		} else {
			intervalMinutes := float64(windowMinutes) / float64(postsToday-1)
			for i := 0; i < postsToday; i++ {
				minutesFromStart := int(float64(i) * intervalMinutes)
				totalMinutes := startHour*60 + minutesFromStart

				hour := totalMinutes / 60
				minute := totalMinutes % 60
				if hour > endHour {
					hour = endHour
					minute = 59
				}
				times = append(times, time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()))
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return times
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
