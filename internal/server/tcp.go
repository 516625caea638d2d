package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"siaguard/internal/protocol"
)

// StartTCP starts the threaded TCP transport: one goroutine per
// connection, response written before dispatch runs. The returned address
// carries the bound port when addr used port 0.
func StartTCP(ctx context.Context, addr string, engine *protocol.Engine, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("tcp transport listening", "addr", ln.Addr().String())
	}
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
					logger.Warn("tcp accept error", "err", err)
				}
				continue
			}
			go handleConn(ctx, conn, engine, logger)
		}
	}()
	return ln.Addr(), nil
}

func handleConn(ctx context.Context, conn net.Conn, engine *protocol.Engine, logger *slog.Logger) {
	defer conn.Close()
	err := readFrames(ctx, conn, func(line []byte) bool {
		resp, ev := engine.Process(line)
		if resp != nil {
			if _, werr := conn.Write(resp); werr != nil {
				if logger != nil {
					logger.Warn("tcp write error", "err", werr, "remote", conn.RemoteAddr().String())
				}
				return false
			}
		}
		engine.Dispatch(ev)
		return true
	})
	if err != nil && logger != nil {
		logger.Warn("tcp read error", "err", err, "remote", conn.RemoteAddr().String())
	}
}
