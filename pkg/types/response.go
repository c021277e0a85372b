// Package types holds the wire envelopes shared by every endpoint.
package types

// SuccessEnvelope wraps every 2xx payload under a data key so clients can
// unmarshal without sniffing the shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the coded error body. Details carries caller-facing context
// and is only populated for codes whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
