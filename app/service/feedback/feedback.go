package feedback

import (
	"fmt"
	"strings"
)

const (
	minRating = 1
	maxRating = 10
)

// Format composes the end-of-interview summary. Ratings supplied out of
// range are clamped rather than rejected.
func Format(strengths, areasForImprovement string, rating int) string {
	if rating < minRating {
		rating = minRating
	}
	if rating > maxRating {
		rating = maxRating
	}

	var builder strings.Builder

	builder.WriteString("Interview Feedback Summary\n")
	builder.WriteString("==========================\n\n")
	builder.WriteString(fmt.Sprintf("RATING: %d/%d\n\n", rating, maxRating))
	builder.WriteString("STRENGTHS:\n")
	builder.WriteString(strengths)
	builder.WriteString("\n\nAREAS FOR IMPROVEMENT:\n")
	builder.WriteString(areasForImprovement)
	builder.WriteString("\n\nThank you for participating in this technical interview!")

	return builder.String()
}
