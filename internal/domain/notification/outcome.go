// internal/domain/notification/outcome.go
package notification

// Outcome is the result of one delivery attempt for one record.
type Outcome string

const (
	OutcomeSent         Outcome = "SENT"          // Sent and marked
	OutcomeRenderFailed Outcome = "RENDER_FAILED" // Body could not be built, nothing sent
	OutcomeSendFailed   Outcome = "SEND_FAILED"   // Mail transport rejected the message
	OutcomeMarkFailed   Outcome = "MARK_FAILED"   // Sent, but the store kept it pending
)

// Delivered reports whether an email actually left for this outcome.
func (o Outcome) Delivered() bool {
	return o == OutcomeSent || o == OutcomeMarkFailed
}
