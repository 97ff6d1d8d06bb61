package asynq

// Sweep task types handled by the worker mux.
const (
	OfferExpireTask     = "offer:expire"
	TimelineCheckTask   = "timeline:check-deadlines"
	PaymentBatchTask    = "payment:process-batch"
	WithdrawalBatchTask = "withdrawal:process-batch"
)

// SweepPayload is the payload shared by all sweep tasks.
type SweepPayload struct {
	RequestedBy string `json:"requested_by"` // "scheduler" or an operator id
}
