package errutil

// CoreStatus is a transport-agnostic error classification.
type CoreStatus string

const (
	StatusBadRequest          CoreStatus = "bad_request"
	StatusValidationFailed    CoreStatus = "validation_failed"
	StatusUnauthorized        CoreStatus = "unauthorized"
	StatusForbidden           CoreStatus = "forbidden"
	StatusNotFound            CoreStatus = "not_found"
	StatusConflict            CoreStatus = "conflict"
	StatusUnprocessableEntity CoreStatus = "unprocessable_entity"
	StatusTooManyRequests     CoreStatus = "too_many_requests"
	StatusTimeout             CoreStatus = "timeout"
	StatusGatewayDeclined     CoreStatus = "gateway_declined"
	StatusBadGateway          CoreStatus = "bad_gateway"
	StatusInternal            CoreStatus = "internal"
	StatusUnknown             CoreStatus = "unknown"
)
