package pattern

import "time"

// heatBlocks are intensity steps from empty to full.
var heatBlocks = []rune(" ░▒▓█")

// HourlyHistogram counts sightings per local hour, midnight first.
func HourlyHistogram(times []time.Time) [24]int {
	var counts [24]int
	for _, t := range times {
		counts[t.Local().Hour()]++
	}
	return counts
}

// WeekdayHistogram counts sightings per local weekday, Monday first.
func WeekdayHistogram(times []time.Time) [7]int {
	var counts [7]int
	for _, t := range times {
		counts[mondayIndex(t.Local().Weekday())]++
	}
	return counts
}

// Heatmap renders counts as one intensity block per cell, scaled to the
// maximum count. An all-zero input renders as spaces.
func Heatmap(counts []int) string {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	row := make([]rune, len(counts))
	for i, c := range counts {
		if max == 0 {
			row[i] = heatBlocks[0]
			continue
		}
		row[i] = heatBlocks[c*(len(heatBlocks)-1)/max]
	}
	return string(row)
}
