// Package gaps measures how often a stock gaps up at the open and then
// closes below that open ("gap and fade").
package gaps

import (
	"fmt"
	"math"

	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// Lookback and threshold bounds accepted by the gaps endpoint.
const (
	DefaultMonths    = 9
	MinMonths        = 6
	MaxMonths        = 12
	DefaultThreshold = 24.0
	MinThreshold     = 0.0
	MaxThreshold     = 200.0
)

// minBars is the shortest series that yields statistics.
const minBars = 3

// ValidateMonths checks the lookback window.
func ValidateMonths(months int) error {
	if months < MinMonths || months > MaxMonths {
		return fmt.Errorf("months must be between %d and %d", MinMonths, MaxMonths)
	}
	return nil
}

// ValidateThreshold checks the gap threshold percentage.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < MinThreshold || threshold > MaxThreshold {
		return fmt.Errorf("gap_threshold must be between %g and %g", MinThreshold, MaxThreshold)
	}
	return nil
}

// Compute scans bars (ascending by date). Bar i gaps when its open is at
// least threshold percent above the close of bar i-1, and is red when it
// closes below its own open. Bars whose prior close is not positive are
// skipped. Fewer than three bars yield zero counts.
func Compute(bars []models.DailyBar, threshold float64) models.GapStats {
	stats := models.GapStats{GapThresholdPercent: threshold}
	if len(bars) < minBars {
		return stats
	}

	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		if prevClose <= 0 {
			continue
		}
		gapPct := (bars[i].Open - prevClose) / prevClose * 100
		if gapPct < threshold {
			continue
		}
		stats.GapsCount++
		if bars[i].Close < bars[i].Open {
			stats.RedAfterGapCount++
		}
	}

	if stats.GapsCount > 0 {
		pct := float64(stats.RedAfterGapCount) / float64(stats.GapsCount) * 100
		stats.RedAfterGapPercent = utils.Round(pct, 2)
	}
	return stats
}
