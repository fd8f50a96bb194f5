// Package types holds the JSON envelopes shared by every API response.
package types

// SuccessEnvelope wraps successful payloads: video records, comment threads,
// grants, and the other resource bodies all ride under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of a typed error. Details carries structured
// context for codes that allow it, like validation field errors or the total
// object size on an unsatisfiable range.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every failed response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
