package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"siaguard/internal/model"
	"siaguard/internal/protocol"
)

type loopRequest struct {
	line  []byte
	reply chan loopReply
}

type loopReply struct {
	resp []byte
	ev   *model.Event
}

// StartEventLoop starts the single-threaded TCP transport: connection
// readers feed frames to one run goroutine that does all parsing and
// counting, so lines are handled strictly one at a time. Dispatch still
// runs in the reader goroutine, after the response is written, so a slow
// callback only stalls its own connection.
func StartEventLoop(ctx context.Context, addr string, engine *protocol.Engine, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("eventloop transport listening", "addr", ln.Addr().String())
	}
	requests := make(chan loopRequest)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-requests:
				resp, ev := engine.Process(req.line)
				req.reply <- loopReply{resp: resp, ev: ev}
			}
		}
	}()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("eventloop accept error", "err", err)
				}
				continue
			}
			go handleLoopConn(ctx, conn, requests, engine, logger)
		}
	}()
	return ln.Addr(), nil
}

func handleLoopConn(ctx context.Context, conn net.Conn, requests chan<- loopRequest, engine *protocol.Engine, logger *slog.Logger) {
	defer conn.Close()
	reply := make(chan loopReply, 1)
	err := readFrames(ctx, conn, func(line []byte) bool {
		select {
		case requests <- loopRequest{line: line, reply: reply}:
		case <-ctx.Done():
			return false
		}
		var rep loopReply
		select {
		case rep = <-reply:
		case <-ctx.Done():
			return false
		}
		if rep.resp != nil {
			if _, werr := conn.Write(rep.resp); werr != nil {
				if logger != nil {
					logger.Warn("eventloop write error", "err", werr, "remote", conn.RemoteAddr().String())
				}
				return false
			}
		}
		engine.Dispatch(rep.ev)
		return true
	})
	if err != nil && logger != nil {
		logger.Warn("eventloop read error", "err", err, "remote", conn.RemoteAddr().String())
	}
}
