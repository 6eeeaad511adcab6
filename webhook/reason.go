package webhook

import (
	"fmt"
	"net/http"
)

/* Reason represents why the classifier refused a request
 * Each reason maps to exactly one HTTP status
 */
type Reason int

const (
	MethodNotAllowed Reason = iota + 1
	BadRoute
	TenantNotFound
	TenantNotConfigured
	EmptyPayload
	PayloadTooLarge
	InvalidSignature
	InvalidJSON
)

// String returns the string representation of the reason
func (r Reason) String() string {
	switch r {
	case MethodNotAllowed:
		return "method_not_allowed"
	case BadRoute:
		return "bad_route"
	case TenantNotFound:
		return "tenant_not_found"
	case TenantNotConfigured:
		return "tenant_not_configured"
	case EmptyPayload:
		return "empty_payload"
	case PayloadTooLarge:
		return "payload_too_large"
	case InvalidSignature:
		return "invalid_signature"
	case InvalidJSON:
		return "invalid_json"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status the caller receives
func (r Reason) StatusCode() int {
	switch r {
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case TenantNotFound:
		return http.StatusNotFound
	case TenantNotConfigured, InvalidSignature:
		return http.StatusUnauthorized
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

// Rejection is the error returned by Classify when a gate fails
type Rejection struct {
	Reason Reason
	// Message is safe to show to the caller
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}
