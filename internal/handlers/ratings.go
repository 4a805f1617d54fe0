package handlers

import (
	"math"

	"expiryeaze/internal/models"
)

// computeRatingStats folds star ratings into the vendor aggregate; out-of-range values are ignored.
func computeRatingStats(ratings []int) models.RatingStats {
	var stats models.RatingStats
	sum := 0
	for _, r := range ratings {
		switch r {
		case 1:
			stats.RatingDistribution.One++
		case 2:
			stats.RatingDistribution.Two++
		case 3:
			stats.RatingDistribution.Three++
		case 4:
			stats.RatingDistribution.Four++
		case 5:
			stats.RatingDistribution.Five++
		default:
			continue
		}
		sum += r
		stats.NumReviews++
	}
	if stats.NumReviews > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(stats.NumReviews)*10) / 10
	}
	return stats
}
