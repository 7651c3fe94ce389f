package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed anchor dates in the local zone. 2025-06-02 is a Monday.
func localDate(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.Local)
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		hour int
		want Bucket
	}{
		{0, Night},
		{4, Night},
		{5, EarlyMorning},
		{7, EarlyMorning},
		{8, Morning},
		{11, Morning},
		{12, Afternoon},
		{16, Afternoon},
		{17, Evening},
		{20, Evening},
		{21, Night},
		{23, Night},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.hour), "hour %d", tt.hour)
	}
}

func TestSummarizeInsufficientData(t *testing.T) {
	assert.Equal(t, InsufficientData, Summarize(nil).Text)
	assert.Equal(t, InsufficientData, Summarize([]time.Time{localDate(2025, 6, 2, 19)}).Text)
}

func TestSummarizeConstantEvenings(t *testing.T) {
	// Four evening sightings every day for 30 days: full coverage, well
	// above the per-day floor, but no day-of-week skew.
	var times []time.Time
	for day := 0; day < 30; day++ {
		for _, hour := range []int{17, 18, 19, 20} {
			times = append(times, localDate(2025, 6, 1, hour).AddDate(0, 0, day))
		}
	}

	s := Summarize(times)
	assert.Equal(t, "Constant", s.Frequency)
	assert.Equal(t, "evenings", s.TimeQualifier)
	assert.Empty(t, s.DayQualifier)
	assert.Equal(t, "Constant, evenings", s.Text)
}

func TestSummarizeWeekendMornings(t *testing.T) {
	// Saturday and Sunday mornings for eight weeks. 2025-06-07 is a Saturday.
	var times []time.Time
	for week := 0; week < 8; week++ {
		times = append(times,
			localDate(2025, 6, 7, 10).AddDate(0, 0, week*7),
			localDate(2025, 6, 8, 10).AddDate(0, 0, week*7),
		)
	}

	s := Summarize(times)
	assert.Equal(t, "Occasional", s.Frequency)
	assert.Equal(t, "mornings", s.TimeQualifier)
	assert.Equal(t, "weekends", s.DayQualifier)
	assert.Equal(t, "Occasional, mornings (weekends)", s.Text)
}

func TestSummarizeSingleDayDominance(t *testing.T) {
	// Seven Mondays plus three Saturdays: neither side reaches
	// DaySideDominance, but Mondays carry 70% of the sightings.
	var times []time.Time
	for week := 0; week < 7; week++ {
		times = append(times, localDate(2025, 6, 2, 19).AddDate(0, 0, week*7))
	}
	for week := 0; week < 3; week++ {
		times = append(times, localDate(2025, 6, 7, 19).AddDate(0, 0, week*7))
	}

	s := Summarize(times)
	assert.Equal(t, "mondays", s.DayQualifier)
	assert.Equal(t, "evenings", s.TimeQualifier)
	assert.Equal(t, "Occasional, evenings (mondays)", s.Text)
}

func TestSummarizeAllDay(t *testing.T) {
	// Sightings spread evenly over every bucket across two weekdays: no
	// bucket reaches TimeDominance, the weekday side does.
	var times []time.Time
	for day := 0; day < 2; day++ {
		for _, hour := range []int{6, 9, 13, 18, 22} {
			times = append(times, localDate(2025, 6, 2, hour).AddDate(0, 0, day))
		}
	}

	s := Summarize(times)
	assert.Equal(t, "Constant", s.Frequency)
	assert.Equal(t, "all day", s.TimeQualifier)
	assert.Equal(t, "weekdays", s.DayQualifier)
	assert.Equal(t, "Constant, all day (weekdays)", s.Text)
}

func TestSummarizeOrderIndependence(t *testing.T) {
	times := []time.Time{
		localDate(2025, 6, 2, 19),
		localDate(2025, 6, 3, 9),
		localDate(2025, 6, 4, 19),
		localDate(2025, 6, 5, 19),
	}
	reversed := make([]time.Time, len(times))
	for i, tm := range times {
		reversed[len(times)-1-i] = tm
	}

	require.Equal(t, Summarize(times), Summarize(reversed))
}

func TestSummarizeDeterministic(t *testing.T) {
	times := []time.Time{
		localDate(2025, 6, 2, 8),
		localDate(2025, 6, 2, 17),
		localDate(2025, 6, 9, 8),
	}
	assert.Equal(t, Summarize(times), Summarize(times))
}

func TestFrequencyTiers(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		distinct int
		span     int
		want     string
	}{
		{"full coverage high volume", 90, 30, 30, "Constant"},
		{"full coverage low volume", 30, 30, 30, "Daily"},
		{"near daily", 28, 28, 30, "Daily"},
		{"half the days", 15, 15, 30, "Regular"},
		{"a few days", 5, 5, 30, "Occasional"},
		{"once in a long while", 2, 2, 30, "Rare"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, frequency(tt.total, tt.distinct, tt.span))
		})
	}
}

func TestSpanDaysInclusive(t *testing.T) {
	first := localDate(2025, 6, 2, 23)
	last := localDate(2025, 6, 3, 1)
	assert.Equal(t, 2, spanDays(first, last))
	assert.Equal(t, 1, spanDays(first, first))
}

func TestHourlyHistogram(t *testing.T) {
	counts := HourlyHistogram([]time.Time{
		localDate(2025, 6, 2, 9),
		localDate(2025, 6, 2, 9),
		localDate(2025, 6, 2, 18),
	})
	assert.Equal(t, 2, counts[9])
	assert.Equal(t, 1, counts[18])
	assert.Equal(t, 0, counts[0])
}

func TestWeekdayHistogramMondayFirst(t *testing.T) {
	counts := WeekdayHistogram([]time.Time{
		localDate(2025, 6, 2, 12), // Monday
		localDate(2025, 6, 8, 12), // Sunday
	})
	assert.Equal(t, 1, counts[0])
	assert.Equal(t, 1, counts[6])
}

func TestHeatmap(t *testing.T) {
	assert.Equal(t, "    ", Heatmap([]int{0, 0, 0, 0}))
	assert.Equal(t, "", Heatmap(nil))

	row := []rune(Heatmap([]int{0, 1, 2, 4}))
	require.Len(t, row, 4)
	assert.Equal(t, ' ', row[0])
	assert.Equal(t, '█', row[3])
	// Intermediate cells scale against the max.
	assert.NotEqual(t, ' ', row[2])
	assert.NotEqual(t, '█', row[1])
}
