package einvoice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Kind is a tag from the closed classification taxonomy. Everything the
// transport layer produces is mapped onto one of these; callers branch on
// the tag, never on raw provider errors or status codes.
type Kind string

const (
	// KindNeedsConfirmation is not a failure: the provider detected a
	// duplicate submission and requires an explicit operator decision.
	KindNeedsConfirmation Kind = "NEEDS_CONFIRMATION"
	// KindConflict means the document is already being processed upstream
	KindConflict Kind = "CONFLICT"
	// KindAuthFailure means provider credentials were rejected
	KindAuthFailure Kind = "AUTH_FAILURE"
	// KindNotFound means the document is unknown to the provider
	KindNotFound Kind = "NOT_FOUND"
	// KindTimeout means the remote call exceeded its deadline. The remote
	// side may still have succeeded; the caller checks status later.
	KindTimeout Kind = "TIMEOUT"
	// KindValidation means the document is missing required data
	KindValidation Kind = "VALIDATION_ERROR"
	// KindProviderError is a terminal processing error reported by the
	// provider itself (state code 4).
	KindProviderError Kind = "PROVIDER_PROCESSING_ERROR"
	// KindStillProcessing is a polling-only retryable outcome: the
	// provider has the document but has not finished processing it.
	KindStillProcessing Kind = "STILL_PROCESSING"
	// KindNotYetVisible is a polling-only retryable outcome: the document
	// is not visible upstream yet during the provider's latency window.
	KindNotYetVisible Kind = "NOT_YET_VISIBLE"
	// KindResolved is not a failure: the provider reports final delivery
	KindResolved Kind = "RESOLVED"
	// KindUnknown preserves unclassified errors verbatim
	KindUnknown Kind = "UNKNOWN"
)

// IsFailure returns true for kinds that represent an error outcome
func (k Kind) IsFailure() bool {
	return k != KindNeedsConfirmation && k != KindResolved
}

// Classification is the classifier's verdict on a raw transport outcome
type Classification struct {
	Kind      Kind
	Retryable bool
	Message   string
	// Snapshot carries the provider status snapshot when the body
	// included one (confirmation conflicts).
	Snapshot *StatusSnapshot
	// StateCode carries the provider state code when one was reported
	StateCode *int
}

// responseBody is the structured error body some provider replies carry
type responseBody struct {
	Error             string          `json:"error"`
	Message           string          `json:"message"`
	NeedsConfirmation bool            `json:"needsConfirmation"`
	CurrentStatus     *StatusSnapshot `json:"currentStatus"`
}

// Classify maps a raw submission failure onto the taxonomy. Rules apply in
// priority order; the structured confirmation flag always wins. Submission
// errors are never retryable: retrying a submission automatically risks
// duplicate documents, so only an explicit force-resend may retry.
func Classify(rawErr error, body []byte) Classification {
	if c, ok := classifyBody(body); ok {
		return c
	}

	if rawErr == nil {
		return Classification{Kind: KindUnknown, Message: "unclassified provider response"}
	}

	message := rawErr.Error()
	if parsed, ok := classifyBody([]byte(message)); ok {
		return parsed
	}

	switch {
	case errors.Is(rawErr, context.DeadlineExceeded):
		return Classification{
			Kind:    KindTimeout,
			Message: "submission timed out; the provider may still complete it, check status later",
		}
	case errors.Is(rawErr, ErrProviderAuthFailed), errors.Is(rawErr, ErrProviderSessionExpired):
		return Classification{
			Kind:    KindAuthFailure,
			Message: "provider authentication failed, check the exchange credentials",
		}
	case errors.Is(rawErr, ErrProviderNotConfigured):
		return Classification{
			Kind:    KindAuthFailure,
			Message: "no exchange credentials configured for this tenant",
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "409") || strings.Contains(lower, "already being processed") || strings.Contains(lower, "already submitted") || strings.Contains(lower, "conflict"):
		return Classification{
			Kind:    KindConflict,
			Message: "the document is already being processed by the provider, wait a few minutes",
		}
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication") || strings.Contains(lower, "credential"):
		return Classification{
			Kind:    KindAuthFailure,
			Message: "provider authentication failed, check the exchange credentials",
		}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return Classification{
			Kind:    KindNotFound,
			Message: message,
		}
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return Classification{
			Kind:    KindTimeout,
			Message: "submission timed out; the provider may still complete it, check status later",
		}
	case strings.Contains(lower, "tax id") || strings.Contains(lower, "tax number") || strings.Contains(lower, "required field"):
		return Classification{
			Kind:    KindValidation,
			Message: message,
		}
	default:
		return Classification{
			Kind:    KindUnknown,
			Message: message,
		}
	}
}

// classifyBody inspects a structured response body for the explicit
// confirmation flag. A body that carries needsConfirmation switches the
// caller onto the confirmation path regardless of anything else.
func classifyBody(body []byte) (Classification, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return Classification{}, false
	}
	var parsed responseBody
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return Classification{}, false
	}
	if !parsed.NeedsConfirmation {
		return Classification{}, false
	}
	message := parsed.Error
	if message == "" {
		message = parsed.Message
	}
	return Classification{
		Kind:     KindNeedsConfirmation,
		Message:  message,
		Snapshot: parsed.CurrentStatus,
	}, true
}

// ClassifyStatus maps a status poll outcome onto the taxonomy. Polling has
// two retryable kinds on top of the submission rules: a still-processing
// report and a not-yet-visible document are both expected during the
// provider's own latency window.
func ClassifyStatus(res *StatusResult, rawErr error) Classification {
	if rawErr != nil {
		c := Classify(rawErr, nil)
		if c.Kind == KindNotFound {
			return Classification{
				Kind:      KindNotYetVisible,
				Retryable: true,
				Message:   "document not visible upstream yet",
			}
		}
		return c
	}
	if res == nil {
		return Classification{Kind: KindUnknown, Message: "empty status response"}
	}

	code := res.StateCode
	switch {
	case code == StateDelivered:
		return Classification{Kind: KindResolved, StateCode: &code, Message: res.UserFriendlyStatus}
	case code == StateError:
		message := res.Description
		if message == "" {
			message = res.StateName
		}
		return Classification{Kind: KindProviderError, StateCode: &code, Message: message}
	case IsProcessingState(code) || code == StateDraft:
		return Classification{
			Kind:      KindStillProcessing,
			Retryable: true,
			StateCode: &code,
			Message:   "document is still being processed by the provider",
		}
	default:
		return Classification{
			Kind:      KindUnknown,
			StateCode: &code,
			Message:   res.StateName,
		}
	}
}
