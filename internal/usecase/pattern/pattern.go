// Package pattern derives a qualitative presence description from a
// device's sighting history. All thresholds in this package are fixed
// policy and part of the contract: the same sighting set always yields
// byte-identical output.
package pattern

import (
	"fmt"
	"time"
)

// Time-of-day buckets by local hour. Ranges are half-open [start, end)
// and non-overlapping; Night wraps around midnight.
const (
	earlyMorningStart = 5  // 5AM
	morningStart      = 8  // 8AM
	afternoonStart    = 12 // 12PM
	eveningStart      = 17 // 5PM
	nightStart        = 21 // 9PM, runs through 5AM
)

// Classification thresholds. Documented contract, not configuration.
const (
	// MinSightings below which the engine reports insufficient data.
	MinSightings = 2
	// TimeDominance is the minimum share of sightings a single
	// time-of-day bucket needs before it is reported; otherwise the
	// time qualifier is "all day".
	TimeDominance = 0.50
	// DaySideDominance is the minimum share on the weekday (or weekend)
	// side before "weekdays" / "weekends" is reported.
	DaySideDominance = 0.80
	// SingleDayDominance is the minimum share a single weekday needs
	// before that day is reported by name.
	SingleDayDominance = 0.60
	// ConstantMinPerDay is the average sightings per day required, on
	// top of full day coverage, for the Constant tier.
	ConstantMinPerDay = 3.0
	// Frequency tiers by distinct-day coverage of the observed span.
	DailyRatio      = 0.90
	RegularRatio    = 0.50
	OccasionalRatio = 0.15
)

// InsufficientData is reported for histories shorter than MinSightings.
const InsufficientData = "Insufficient data"

// Bucket is a time-of-day class.
type Bucket int

const (
	EarlyMorning Bucket = iota
	Morning
	Afternoon
	Evening
	Night
	numBuckets
)

var bucketLabels = [numBuckets]string{
	EarlyMorning: "early mornings",
	Morning:      "mornings",
	Afternoon:    "afternoons",
	Evening:      "evenings",
	Night:        "nights",
}

// BucketFor classifies a local hour.
func BucketFor(hour int) Bucket {
	switch {
	case hour >= nightStart || hour < earlyMorningStart:
		return Night
	case hour < morningStart:
		return EarlyMorning
	case hour < afternoonStart:
		return Morning
	case hour < eveningStart:
		return Afternoon
	default:
		return Evening
	}
}

// Summary is the derived presence pattern for one device.
type Summary struct {
	Frequency     string `json:"frequency,omitempty"`      // Constant, Daily, Regular, Occasional, Rare
	TimeQualifier string `json:"time_qualifier,omitempty"` // bucket label or "all day"
	DayQualifier  string `json:"day_qualifier,omitempty"`  // "weekdays", "weekends", a day name, or empty
	Text          string `json:"text"`                     // composed human-readable summary
}

// Summarize classifies an ordered sighting history. Input order does not
// affect the result; only the timestamps do. Hours and weekdays are
// evaluated in the timestamps' locations (the daemon records local
// sightings in UTC and converts here via time.Time's location handling),
// so callers should pass times carrying the zone they want bucketing in.
func Summarize(times []time.Time) Summary {
	if len(times) < MinSightings {
		return Summary{Text: InsufficientData}
	}

	var buckets [numBuckets]int
	var weekdays [7]int // Monday-first
	distinct := make(map[string]struct{}, len(times))
	first, last := times[0], times[0]

	for _, t := range times {
		lt := t.Local()
		buckets[BucketFor(lt.Hour())]++
		weekdays[mondayIndex(lt.Weekday())]++
		distinct[lt.Format("2006-01-02")] = struct{}{}
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}

	total := len(times)
	s := Summary{
		TimeQualifier: timeQualifier(buckets, total),
		DayQualifier:  dayQualifier(weekdays, total),
		Frequency:     frequency(total, len(distinct), spanDays(first, last)),
	}

	s.Text = fmt.Sprintf("%s, %s", s.Frequency, s.TimeQualifier)
	if s.DayQualifier != "" {
		s.Text += fmt.Sprintf(" (%s)", s.DayQualifier)
	}
	return s
}

// timeQualifier reports the dominant bucket's label when its share meets
// TimeDominance, else "all day". Ties resolve to the earliest bucket.
func timeQualifier(buckets [numBuckets]int, total int) string {
	best := EarlyMorning
	for b := Morning; b < numBuckets; b++ {
		if buckets[b] > buckets[best] {
			best = b
		}
	}
	if float64(buckets[best]) >= TimeDominance*float64(total) {
		return bucketLabels[best]
	}
	return "all day"
}

// dayQualifier reports "weekdays"/"weekends" at DaySideDominance, a single
// day name at SingleDayDominance, or nothing.
func dayQualifier(weekdays [7]int, total int) string {
	weekday := weekdays[0] + weekdays[1] + weekdays[2] + weekdays[3] + weekdays[4]
	weekend := weekdays[5] + weekdays[6]

	switch {
	case float64(weekday) >= DaySideDominance*float64(total):
		return "weekdays"
	case float64(weekend) >= DaySideDominance*float64(total):
		return "weekends"
	}

	names := [7]string{"mondays", "tuesdays", "wednesdays", "thursdays", "fridays", "saturdays", "sundays"}
	for i, count := range weekdays {
		if float64(count) >= SingleDayDominance*float64(total) {
			return names[i]
		}
	}
	return ""
}

// frequency maps distinct-day coverage of the observed span to a tier.
func frequency(total, distinctDays, span int) string {
	ratio := float64(distinctDays) / float64(span)
	perDay := float64(total) / float64(span)

	switch {
	case distinctDays >= span && perDay >= ConstantMinPerDay:
		return "Constant"
	case ratio >= DailyRatio:
		return "Daily"
	case ratio >= RegularRatio:
		return "Regular"
	case ratio >= OccasionalRatio:
		return "Occasional"
	default:
		return "Rare"
	}
}

// spanDays is the inclusive count of local calendar days between the
// first and last sighting.
func spanDays(first, last time.Time) int {
	f := first.Local()
	l := last.Local()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, f.Location())
	ld := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
	return int(ld.Sub(fd).Hours()/24) + 1
}

// mondayIndex converts time.Weekday (Sunday-first) to a Monday-first index.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
