// Package types holds the JSON envelopes shared by every HTTP endpoint.
package types

// SuccessEnvelope wraps every 2xx payload under a single "data" key so
// clients can decode uniformly.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body: a stable machine-readable code, a
// caller-safe message, and optional structured details for codes that
// permit them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope mirrors SuccessEnvelope for the failure path.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
