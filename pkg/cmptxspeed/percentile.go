package cmptxspeed

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var percentiles = []int{10, 25, 50, 75, 90}

func calculatePercentiles(data []time.Duration) string {
	if len(data) == 0 {
		return ""
	}

	sorted := make([]time.Duration, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	parts := make([]string, 0, len(percentiles))
	for _, percentile := range percentiles {
		parts = append(parts, fmt.Sprintf("P%d: %dms", percentile, calculatePercentile(sorted, float64(percentile)).Milliseconds()))
	}

	return strings.Join(parts, " ")
}

func calculatePercentile(data []time.Duration, percentile float64) time.Duration {
	index := int((percentile / 100) * float64(len(data)-1))
	return data[index]
}
