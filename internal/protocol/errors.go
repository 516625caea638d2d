package protocol

import "fmt"

// FormatError marks a line that does not follow the wire grammar: bad
// envelope, missing or undecryptable content block, bad timestamp. It is
// counted and answered with NAK, never surfaced to the caller.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "event format error: " + e.Reason
}

// NoAccountError marks a line whose declared account id is not configured.
type NoAccountError struct {
	Account string
}

func (e *NoAccountError) Error() string {
	return fmt.Sprintf("no account configured for id %q", e.Account)
}
