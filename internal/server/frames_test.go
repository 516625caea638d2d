package server

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestReadFramesSplitsOnCROrLF(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"one\rtwo\r", []string{"one", "two"}},
		{"one\ntwo\n", []string{"one", "two"}},
		{"one\r\ntwo\r\n", []string{"one", "", "two", ""}},
		{"tail without terminator", []string{"tail without terminator"}},
	}
	for _, tc := range cases {
		client, srv := net.Pipe()
		frames := make(chan string, 8)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = readFrames(context.Background(), srv, func(line []byte) bool {
				frames <- string(line)
				return true
			})
		}()
		if _, err := client.Write([]byte(tc.input)); err != nil {
			t.Fatalf("write %q: %v", tc.input, err)
		}
		client.Close()
		<-done
		close(frames)
		var got []string
		for f := range frames {
			got = append(got, f)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("frames(%q) = %v, want %v", tc.input, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("frames(%q) = %v, want %v", tc.input, got, tc.want)
			}
		}
	}
}

func TestReadFramesFlushesIdlePartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, srv := net.Pipe()
	defer client.Close()
	frames := make(chan string, 1)
	go func() {
		_ = readFrames(ctx, srv, func(line []byte) bool {
			frames <- string(line)
			return true
		})
	}()

	// Frame sent with no terminator while the connection stays open.
	if _, err := client.Write([]byte("half a frame")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case got := <-frames:
		if got != "half a frame" {
			t.Fatalf("frame = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("partial frame never flushed")
	}
}

func TestReadFramesStopsWhenHandleReturnsFalse(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	done := make(chan struct{})
	var calls int
	go func() {
		defer close(done)
		_ = readFrames(context.Background(), srv, func([]byte) bool {
			calls++
			return false
		})
	}()

	if _, err := client.Write([]byte("one\rtwo\r")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("readFrames did not stop")
	}
	if calls != 1 {
		t.Fatalf("handle calls = %d, want 1", calls)
	}
}
