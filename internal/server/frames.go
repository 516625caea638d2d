package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

const (
	// Panels may send a frame and wait for the response without any
	// terminator, so buffered bytes are handed to the engine once the
	// connection goes quiet for this long.
	frameIdle = 200 * time.Millisecond

	maxFrame = 1024 * 1024
)

// readFrames reads CR or LF separated frames from conn and calls handle
// for each one, in arrival order. The stock ScanLines split would sit on
// a CR-only or unterminated frame until the peer disconnected. handle
// returns false to stop; remaining buffered bytes are flushed on EOF.
func readFrames(ctx context.Context, conn net.Conn, handle func(line []byte) bool) error {
	buf := make([]byte, 0, 8192)
	tmp := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(frameIdle))
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				i := bytes.IndexAny(buf, "\r\n")
				if i < 0 {
					break
				}
				if !handle(buf[:i]) {
					return nil
				}
				buf = buf[i+1:]
			}
			if len(buf) > maxFrame {
				if !handle(buf) {
					return nil
				}
				buf = buf[:0]
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if len(buf) > 0 {
					if !handle(buf) {
						return nil
					}
					buf = buf[:0]
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				if len(buf) > 0 {
					handle(buf)
				}
				return nil
			}
			return err
		}
	}
}
