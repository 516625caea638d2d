package protocol

import (
	"regexp"
	"strings"
	"time"

	"siaguard/internal/account"
	"siaguard/internal/crc"
	"siaguard/internal/model"
)

// Envelope: <crc:4hex><len:4hex>"[*]KIND"<seq>R<receiver>L<line>#<account>[content
// The checksum and length occupy fixed leading positions; sequence,
// receiver and line are optional because some panels omit them.
var reEnvelope = regexp.MustCompile(`^([0-9A-Fa-f]{4})([0-9A-Fa-f]{4})"(\*?)(SIA-DCS|ADM-CID|OH)"([0-9]{4})?(?:R([0-9A-Fa-f]{1,6}))?(?:L([0-9A-Fa-f]{1,6}))?(?:#([0-9A-Za-z]{3,16}))?(?:\[(.*))?$`)

// SIA content: |N ti<HH:MM> id<n> ri<zone> / <code><text> ] [xdata] _timestamp
var reContentSIA = regexp.MustCompile(`^(?:#([0-9A-Za-z]{3,16}))?\|([NO])?(?:ti([0-9:]+))?(?:id([0-9]+))?(?:ri([0-9]+))?/?([A-Za-z]{2}|[0-9]{3})?(.*?)\](?:\[([^\]]*)\])?(?:_([0-9:,\-]+))?$`)

// ADM-CID content: |<qualifier><code:3> <partition:2> <zone:3>]
var reContentADM = regexp.MustCompile(`^(?:#([0-9A-Za-z]{3,16}))?\|([0-9])([0-9]{3}) ([0-9]{2}) ([0-9]{3})\](?:\[([^\]]*)\])?(?:_([0-9:,\-]+))?$`)

const timestampLayout = "15:04:05 01-02-2006"

// ParseLine decodes one trimmed, non-empty line into an event. It never
// panics on malformed input: grammar and account failures come back as a
// reject-kind event plus a typed error used only for counting. The clock
// is a parameter so timestamp validation stays testable.
func ParseLine(line string, accounts *account.Registry, now time.Time) (*model.Event, error) {
	m := reEnvelope.FindStringSubmatch(line)
	if m == nil {
		return &model.Event{Kind: model.KindReject, Raw: line}, &FormatError{Reason: "line does not match envelope grammar"}
	}
	ev := &model.Event{
		Kind:        model.KindReject,
		Raw:         line,
		CRC:         strings.ToUpper(m[1]),
		Length:      strings.ToUpper(m[2]),
		Encrypted:   m[3] == "*",
		MessageType: m[4],
		Sequence:    m[5],
		Receiver:    orDefault(m[6], "0"),
		Line:        orDefault(m[7], "0"),
		AccountID:   strings.ToUpper(m[8]),
	}
	ev.CalcCRC = crc.Format(crc.Compute([]byte(line[8:])))
	ev.CRCValid = ev.CalcCRC == ev.CRC

	if ev.MessageType == model.TypeKeepAlive {
		// Heartbeats are acknowledged regardless of account validity and
		// never dispatched.
		ev.Kind = model.KindHeartbeat
		ev.Account = accounts.Get(ev.AccountID)
		return ev, nil
	}

	if ev.AccountID == "" {
		return ev, &FormatError{Reason: "missing account id"}
	}
	acct := accounts.Get(ev.AccountID)
	if acct == nil {
		return ev, &NoAccountError{Account: ev.AccountID}
	}
	ev.Account = acct

	content := m[9]
	if content == "" {
		return ev, &FormatError{Reason: "missing content block"}
	}
	if ev.Encrypted {
		if !acct.Encrypted() {
			return ev, &FormatError{Reason: "encrypted content for cleartext account " + ev.AccountID}
		}
		dec, err := acct.Decrypt(content)
		if err != nil {
			return ev, &FormatError{Reason: "decrypt content: " + err.Error()}
		}
		content = dec
	}
	if !strings.Contains(content, "]") {
		return ev, &FormatError{Reason: "content block missing trailer"}
	}
	ev.Content = content

	var err error
	if ev.MessageType == model.TypeADM {
		err = parseContentADM(ev, content)
	} else {
		err = parseContentSIA(ev, content)
	}
	if err != nil {
		return ev, err
	}
	ev.Kind = model.KindAlarm
	ev.TimestampValid = ev.Timestamp.IsZero() || acct.ValidTimestamp(ev.Timestamp, now)
	return ev, nil
}

func parseContentSIA(ev *model.Event, content string) error {
	m := reContentSIA.FindStringSubmatch(content)
	if m == nil {
		return &FormatError{Reason: "content does not match grammar"}
	}
	ev.ContentType = m[2]
	ev.OriginatorID = m[4]
	ev.Zone = m[5]
	ev.Code = strings.ToUpper(m[6])
	ev.Message = strings.TrimSpace(m[7])
	ev.XData = m[8]
	return parseTimestamp(ev, m[9])
}

func parseContentADM(ev *model.Event, content string) error {
	m := reContentADM.FindStringSubmatch(content)
	if m == nil {
		return &FormatError{Reason: "content does not match contact-id grammar"}
	}
	ev.EventQualifier = m[2]
	ev.Code = m[3]
	ev.Partition = m[4]
	ev.Zone = m[5]
	ev.XData = m[6]
	return parseTimestamp(ev, m[7])
}

func parseTimestamp(ev *model.Event, value string) error {
	if value == "" {
		return nil
	}
	// A comma in a layout string reads as a fractional-seconds separator,
	// so the wire's comma is swapped for a space before parsing.
	ts, err := time.ParseInLocation(timestampLayout, strings.Replace(value, ",", " ", 1), time.UTC)
	if err != nil {
		return &FormatError{Reason: "bad timestamp " + value}
	}
	ev.Timestamp = ts
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
