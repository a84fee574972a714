package relay

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nulzo/chat-relay/internal/httpclient"
	"github.com/nulzo/chat-relay/internal/llm"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindUnsupportedMode
	KindConfiguration
	KindUpstream
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnsupportedMode:
		return "unsupported_mode"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

const configureHint = "Please set MOCK_MODE=true or configure API keys in .env file"

// Error is the single failure type of the relay. Every kind is recoverable
// at the request boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	// Details carries upstream bodies or transport errors.
	Details string
	// Hint tells an operator how to fix a configuration problem.
	Hint string
	// Status is the upstream status code for KindUpstream, zero otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto the non-streaming endpoint's status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindUnsupportedMode:
		return http.StatusBadRequest
	case KindUpstream:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func promptRequired() *Error {
	return &Error{Kind: KindValidation, Message: "Prompt is required"}
}

// InvalidBody reports a request body that could not be decoded.
func InvalidBody(err error) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid request body", Details: err.Error(), Err: err}
}

func unsupportedMode(mode string) *Error {
	return &Error{Kind: KindUnsupportedMode, Message: fmt.Sprintf("Unsupported mode: %s", mode)}
}

func missingCredential(mode string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("API key for %s is not configured", mode),
		Hint:    configureHint,
	}
}

// classify turns an adapter error into a relay error. transportMessage is
// the headline used for connection level failures.
func classify(err error, transportMessage string) *Error {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr
	}

	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		return &Error{
			Kind:    KindUpstream,
			Message: "AI API request failed",
			Details: string(upstreamErr.Body),
			Status:  upstreamErr.StatusCode,
			Err:     err,
		}
	}

	if errors.Is(err, llm.ErrProviderError) {
		return &Error{
			Kind:    KindUpstream,
			Message: "AI service returned an error",
			Details: err.Error(),
			Err:     err,
		}
	}

	if errors.Is(err, llm.ErrMalformedResponse) || errors.Is(err, httpclient.ErrDecodeResponse) {
		return &Error{
			Kind:    KindUpstream,
			Message: "Unexpected response from AI service",
			Details: err.Error(),
			Err:     err,
		}
	}

	return &Error{
		Kind:    KindTransport,
		Message: transportMessage,
		Details: err.Error(),
		Err:     err,
	}
}
