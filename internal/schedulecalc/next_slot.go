package schedulecalc

import "time"

// NextAvailableSlot implements spec §4.2.2: the alignment policy used by
// "start after last scheduled". latest is the user's latest_scheduled_time
// (Store.latest_scheduled_time), or now if the user has nothing scheduled
// yet. It returns the aligned slot itself, which callers store directly as
// a post's scheduled time.
func NextAvailableSlot(startHour, endHour, intervalHours int, latest time.Time) time.Time {
	candidate := latest.Add(time.Duration(intervalHours) * time.Hour)

	if candidate.Hour() < startHour || candidate.Hour() >= endHour {
		return atHour(candidate, startHour).AddDate(0, 0, 1)
	}

	offset := candidate.Hour() - startHour
	offset = roundUpToMultiple(offset, intervalHours)

	if startHour+offset >= endHour {
		return atHour(candidate, startHour).AddDate(0, 0, 1)
	}

	return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), startHour+offset, 0, 0, 0, candidate.Location())
}

func roundUpToMultiple(n, multiple int) int {
	if multiple <= 0 {
		return n
	}
	if n%multiple == 0 {
		return n
	}
	return ((n / multiple) + 1) * multiple
}
