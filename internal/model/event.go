package model

import (
	"fmt"
	"time"

	"siaguard/internal/account"
)

type Kind string

const (
	KindAlarm     Kind = "alarm"
	KindHeartbeat Kind = "heartbeat"
	KindReject    Kind = "reject"
)

// Message kind tags on the wire.
const (
	TypeSIA       = "SIA-DCS"
	TypeADM       = "ADM-CID"
	TypeKeepAlive = "OH"
)

// Response literals. The acknowledge frame embeds receiver, line and
// account and is built by Response.
const (
	ResponseNAK = `"NAK"`
	ResponseDUH = `"DUH"`
)

// Event is one decoded protocol line. Exactly one is built per incoming
// line; it is never mutated after validation and is dropped once the
// response has been written and dispatch returned.
type Event struct {
	Kind Kind `json:"kind"`

	// Envelope
	Raw         string `json:"raw"`
	CRC         string `json:"crc"`
	CalcCRC     string `json:"calc_crc"`
	Length      string `json:"length"`
	MessageType string `json:"message_type"`
	Encrypted   bool   `json:"encrypted"`
	Receiver    string `json:"receiver"`
	Line        string `json:"line"`
	AccountID   string `json:"account"`
	Sequence    string `json:"sequence,omitempty"`

	// Content, present on full alarm events only.
	Content      string    `json:"content,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	OriginatorID string    `json:"originator_id,omitempty"`
	Zone         string    `json:"zone,omitempty"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
	XData        string    `json:"x_data,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitzero"`

	// ADM-CID only.
	EventQualifier string `json:"event_qualifier,omitempty"`
	Partition      string `json:"partition,omitempty"`

	// Derived during parsing. Account is nil when the id is unknown.
	Account        *account.Account `json:"-"`
	CRCValid       bool             `json:"crc_valid"`
	TimestampValid bool             `json:"timestamp_valid"`
}

func (e *Event) CodeMissing() bool {
	return e.Code == ""
}

// Eligible reports whether the event may be acknowledged and dispatched:
// a full alarm event with matching checksum, a resolved account, a code
// and a timestamp inside the account's tolerance. Everything else is
// rejected and never reaches the dispatch callback.
func (e *Event) Eligible() bool {
	return e.Kind == KindAlarm &&
		e.CRCValid &&
		e.Account != nil &&
		!e.CodeMissing() &&
		e.TimestampValid
}

func (e *Event) Response() []byte {
	switch e.Kind {
	case KindHeartbeat:
		return []byte(ResponseDUH)
	case KindAlarm:
		if e.Eligible() {
			return []byte(fmt.Sprintf(`"ACK"R%sL%s#%s`, e.Receiver, e.Line, e.AccountID))
		}
		return []byte(ResponseNAK)
	default:
		return []byte(ResponseNAK)
	}
}
