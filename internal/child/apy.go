package child

import (
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

// secondsPerYear annualizes snapshot intervals.
const secondsPerYear = 365 * 24 * 3600

// trailingAPYBps derives the annualized yield in basis points from the
// NAV-per-share ratio between the oldest and newest snapshot. It returns 0
// when fewer than two snapshots exist, when no time elapsed between them, or
// when the starting NAV per share is zero.
func trailingAPYBps(snaps []domain.APYSnapshot) int64 {
	if len(snaps) < 2 {
		return 0
	}
	oldest := snaps[0]
	newest := snaps[len(snaps)-1]

	elapsed := newest.Timestamp.Sub(oldest.Timestamp)
	if elapsed <= 0 {
		return 0
	}

	startPerShare := oldest.NAVPerShare()
	endPerShare := newest.NAVPerShare()
	if startPerShare == 0 {
		return 0
	}

	elapsedSec := int64(elapsed / time.Second)
	if elapsedSec == 0 {
		return 0
	}

	// Growth in bps over the window, then annualized linearly.
	growthBps := domain.MulDiv(endPerShare-startPerShare, 10_000, startPerShare)
	return domain.MulDiv(growthBps, secondsPerYear, elapsedSec)
}
