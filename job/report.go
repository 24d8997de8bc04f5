package job

import (
	"fmt"
	"math"
	"time"

	"vidpress/models"
)

func formatMB(b int64) string {
	return fmt.Sprintf("%.2fMB", float64(b)/1024/1024)
}

// compressionRatio is the percentage saved, (1 - compressed/original) * 100,
// rounded to one decimal. A zero original yields 0.
func compressionRatio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	r := math.Round((1-float64(compressed)/float64(original))*1000) / 10
	if r == 0 {
		return 0 // no "-0.0%"
	}
	return r
}

// buildReport assembles the success response. Sizes are base-2 megabytes.
func buildReport(original, compressed int64, url, key string, elapsed time.Duration) *models.CompressResponse {
	return &models.CompressResponse{
		Success:          true,
		OriginalSize:     formatMB(original),
		CompressedSize:   formatMB(compressed),
		CompressionRatio: fmt.Sprintf("%.1f%%", compressionRatio(original, compressed)),
		URL:              url,
		Path:             key,
		ProcessingTime:   fmt.Sprintf("%.1fs", elapsed.Seconds()),
	}
}
