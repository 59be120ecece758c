package transport_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"morse/pkg/transport"
)

func TestPipeRoundTrip(t *testing.T) {
	host, robot := transport.Pipe()
	defer host.Close()
	defer robot.Close()

	go func() {
		_, _ = robot.Write([]byte{0xF5, 0x02, 0x00, 0x81})
	}()

	buf := make([]byte, 16)
	n, err := host.Read(buf, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{0xF5, 0x02, 0x00, 0x81}) {
		t.Fatalf("unexpected bytes: %v", buf[:n])
	}
}

func TestPipeReadTimeout(t *testing.T) {
	host, robot := transport.Pipe()
	defer host.Close()
	defer robot.Close()

	buf := make([]byte, 1)
	_, err := host.Read(buf, 20*time.Millisecond)
	if !errors.Is(err, transport.ErrReadTimeout) {
		t.Fatalf("got %v, want ErrReadTimeout", err)
	}
}

func TestPipeReadAfterPeerClose(t *testing.T) {
	host, robot := transport.Pipe()
	defer host.Close()
	_ = robot.Close()

	buf := make([]byte, 1)
	_, err := host.Read(buf, time.Second)
	if err == nil || errors.Is(err, transport.ErrReadTimeout) {
		t.Fatalf("closed peer must surface a hard error, got %v", err)
	}
}

func TestTCPDialerRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := conn.Read(buf); err == nil {
			_, _ = conn.Write(buf)
		}
	}()

	ch, err := transport.TCPDialer{Timeout: time.Second}.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if _, err := ch.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	n, err := ch.Read(buf, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 4 {
		t.Fatalf("short echo: %d bytes", n)
	}
	<-done
}

func TestTCPDialerOpenError(t *testing.T) {
	_, err := transport.TCPDialer{Timeout: 100 * time.Millisecond}.Dial(context.Background(), "127.0.0.1:1")
	var open *transport.OpenError
	if err == nil || !errors.As(err, &open) {
		t.Fatalf("got %v, want OpenError", err)
	}
}
