package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"siaguard/internal/protocol"
)

// StartUDP starts the datagram transport. Each datagram holds one frame;
// the response goes back to the datagram's source address. The read
// deadline keeps the loop responsive to shutdown.
func StartUDP(ctx context.Context, addr string, engine *protocol.Engine, logger *slog.Logger) (net.Addr, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("udp transport listening", "addr", conn.LocalAddr().String())
	}
	go func() {
		defer conn.Close()
		buf := make([]byte, 8192)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			conn.SetReadDeadline(time.Now().Add(1 * time.Second))
			n, remote, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				if logger != nil {
					logger.Warn("udp read error", "err", err)
				}
				continue
			}
			resp, ev := engine.Process(buf[:n])
			if resp != nil {
				if _, err := conn.WriteToUDP(resp, remote); err != nil && logger != nil {
					logger.Warn("udp write error", "err", err, "remote", remote.String())
				}
			}
			// There is no per-connection loop to absorb a slow callback,
			// so dispatch must not hold up the next datagram.
			go engine.Dispatch(ev)
		}
	}()
	return conn.LocalAddr(), nil
}
