package msock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestListen_UnsupportedScheme(t *testing.T) {
	if _, err := Listen("udp://127.0.0.1:0", Config{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestListenAccept_TCPRoundTrip(t *testing.T) {
	ln, err := Listen("tcp://127.0.0.1:0", Config{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().String()

	type acceptResult struct {
		conn *Connection
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept(Callbacks{})
		acceptCh <- acceptResult{conn, err}
	}()

	clientConn, err := Dial("tcp://"+addr, Config{}, Callbacks{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	res := <-acceptCh
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}
	serverConn := res.conn
	defer serverConn.Close()

	chClient, err := clientConn.CreateChannel(mustID(1), ChannelData)
	if err != nil {
		t.Fatalf("client CreateChannel: %v", err)
	}
	chServer, err := serverConn.CreateChannel(mustID(1), ChannelData)
	if err != nil {
		t.Fatalf("server CreateChannel: %v", err)
	}

	go func() {
		chClient.Write([]byte("hi"))
		chClient.Close()
	}()

	got := readAllFromChannel(chServer, 2)
	if string(got) != "hi" {
		t.Fatalf("expected %q, got %q", "hi", got)
	}
}

func TestListenAccept_UnixRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "msock.sock")

	ln, err := Listen("unix://"+sockPath, Config{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	type acceptResult struct {
		conn *Connection
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept(Callbacks{})
		acceptCh <- acceptResult{conn, err}
	}()

	clientConn, err := Dial("unix://"+sockPath, Config{}, Callbacks{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	res := <-acceptCh
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}
	serverConn := res.conn
	defer serverConn.Close()

	chClient, err := clientConn.CreateChannel(mustID(1), ChannelData)
	if err != nil {
		t.Fatalf("client CreateChannel: %v", err)
	}
	chServer, err := serverConn.CreateChannel(mustID(1), ChannelData)
	if err != nil {
		t.Fatalf("server CreateChannel: %v", err)
	}

	go func() {
		chClient.Write([]byte("ok"))
		chClient.Close()
	}()

	got := readAllFromChannel(chServer, 2)
	if string(got) != "ok" {
		t.Fatalf("expected %q, got %q", "ok", got)
	}
}
