package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"siaguard/internal/account"
	"siaguard/internal/counter"
	"siaguard/internal/model"
)

// DispatchFunc receives every eligible alarm event. A returned error is
// counted against the user_code_errors counter but never fails the
// connection that produced the event.
type DispatchFunc func(*model.Event) error

type Engine struct {
	accounts *account.Registry
	counts   *counter.Set
	dispatch DispatchFunc
	audit    func(string)
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(accounts *account.Registry, counts *counter.Set, dispatch DispatchFunc, logger *slog.Logger) *Engine {
	return &Engine{
		accounts: accounts,
		counts:   counts,
		dispatch: dispatch,
		logger:   logger,
		now:      time.Now,
	}
}

// SetAuditSink installs a raw-line sink called for every non-empty line
// before any parsing happens.
func (e *Engine) SetAuditSink(sink func(string)) {
	e.audit = sink
}

// Process handles one raw line and returns the response to write back
// plus the decoded event. Empty lines are connection idle noise: nil
// response, nil event, nothing counted. The response is always produced
// here so transports can answer before dispatch runs.
func (e *Engine) Process(raw []byte) ([]byte, *model.Event) {
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return nil, nil
	}
	if e.audit != nil {
		e.audit(line)
	}
	e.counts.Increment(counter.Events)

	ev, err := ParseLine(line, e.accounts, e.now())
	if err != nil {
		var noAcct *NoAccountError
		if errors.As(err, &noAcct) {
			e.counts.Increment(counter.Account)
			e.warn("unknown account", "account", noAcct.Account, "line", line)
		} else {
			e.counts.Increment(counter.Format)
			e.warn("unparseable line", "err", err, "line", line)
		}
		return ev.Response(), ev
	}
	if ev.Kind == model.KindHeartbeat {
		return ev.Response(), ev
	}

	switch {
	case !ev.CRCValid:
		e.counts.Increment(counter.CRC)
		e.warn("crc mismatch", "sent", ev.CRC, "calculated", ev.CalcCRC, "account", ev.AccountID)
	case ev.CodeMissing():
		e.counts.Increment(counter.Code)
		e.warn("event code not found", "account", ev.AccountID, "content", ev.Content)
	case !ev.TimestampValid:
		e.counts.Increment(counter.Timestamp)
		e.warn("timestamp outside tolerance", "account", ev.AccountID, "timestamp", ev.Timestamp)
	}
	return ev.Response(), ev
}

// Dispatch hands an eligible event to the callback. It runs after the
// response has been written: callback errors and panics are counted and
// swallowed, never undoing the acknowledgement.
func (e *Engine) Dispatch(ev *model.Event) {
	if ev == nil || !ev.Eligible() {
		return
	}
	e.counts.Increment(counter.Valid)
	if e.dispatch == nil {
		return
	}
	if err := e.safeDispatch(ev); err != nil {
		e.counts.Increment(counter.UserCode)
		e.warn("dispatch callback failed", "err", err, "account", ev.AccountID, "code", ev.Code)
	}
}

func (e *Engine) safeDispatch(ev *model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	return e.dispatch(ev)
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
