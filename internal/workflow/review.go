package workflow

import "strings"

// Verdict classifies a reviewer response.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRevision Verdict = "revision_needed"
	VerdictUnclear  Verdict = "unclear"
)

// classifyReview maps a raw reviewer response to a verdict plus
// feedback. An unclear response is reported as such; callers treat it
// as revision-needed.
func classifyReview(response string) (Verdict, string) {
	upper := strings.ToUpper(response)

	// REVISION NEEDED wins over an APPROVED mentioned in passing.
	if strings.Contains(upper, "REVISION NEEDED") {
		feedback := response
		if idx := strings.Index(upper, "REVISION NEEDED:"); idx >= 0 {
			feedback = strings.TrimSpace(response[idx+len("REVISION NEEDED:"):])
		}
		return VerdictRevision, feedback
	}
	if strings.Contains(upper, "APPROVED") {
		return VerdictApproved, "Approved by reviewer"
	}
	return VerdictUnclear, "Review unclear: " + response
}
