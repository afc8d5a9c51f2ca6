// Package clock isolates wall-clock access behind an interface so the
// scheduling subsystem (ScheduleCalc, Dispatcher, Monitor) can be driven
// deterministically in tests.
package clock

import "time"

// Clock returns the current time in a fixed local zone. It is component C1
// of the specification.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Real is a Clock backed by time.Now, localized to Location.
type Real struct {
	loc *time.Location
}

// New returns a Clock that reports time in the named IANA zone (e.g.
// "Europe/Kiev"). It panics if the zone cannot be loaded, since a bad
// timezone is a configuration error the process should not start with.
func New(zoneName string) *Real {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		panic("clock: invalid timezone " + zoneName + ": " + err.Error())
	}
	return &Real{loc: loc}
}

func (r *Real) Now() time.Time {
	return time.Now().In(r.loc)
}

func (r *Real) Location() *time.Location {
	return r.loc
}

// Fixed is a Clock for tests: it always reports the same instant unless
// advanced with Advance.
type Fixed struct {
	t   time.Time
	loc *time.Location
}

// NewFixed returns a Fixed clock reporting t, localized to loc.
func NewFixed(t time.Time, loc *time.Location) *Fixed {
	return &Fixed{t: t.In(loc), loc: loc}
}

func (f *Fixed) Now() time.Time {
	return f.t
}

func (f *Fixed) Location() *time.Location {
	return f.loc
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// Set pins the fixed clock to t.
func (f *Fixed) Set(t time.Time) {
	f.t = t.In(f.loc)
}
