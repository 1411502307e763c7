package network

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitState(t *testing.T, ch <-chan ConnectionState) ConnectionState {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a completion")
	}
	return Disconnected
}

func recorder() (Callback, chan ConnectionState) {
	ch := make(chan ConnectionState, 8)
	return func(s *State) { ch <- s.Status() }, ch
}

func TestReceiveStagesDataUntilDrained(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	cb, events := recorder()
	s := Adopt(server, cb)
	if st := waitState(t, events); st != Connected {
		t.Fatalf("adopt reported %v", st)
	}

	if err := RequestMoreData(s); err != nil {
		t.Fatalf("arm read: %v", err)
	}
	if _, err := peer.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if st := waitState(t, events); st != HasData {
		t.Fatalf("after write got %v, want has-data", st)
	}

	err := RequestMoreData(s)
	if !errors.Is(err, ErrInvalidState) || !errors.Is(err, ErrHasData) {
		t.Fatalf("re-arm with pending data: %v", err)
	}

	if got := string(s.Drain()); got != "hello\n" {
		t.Fatalf("drained %q", got)
	}
	if s.Status() != Connected {
		t.Fatalf("drain left %v", s.Status())
	}
}

func TestPeerCloseDisconnects(t *testing.T) {
	server, peer := net.Pipe()
	cb, events := recorder()
	s := Adopt(server, cb)
	waitState(t, events)

	if err := RequestMoreData(s); err != nil {
		t.Fatal(err)
	}
	peer.Close()
	if st := waitState(t, events); st != Disconnected {
		t.Fatalf("peer close reported %v", st)
	}

	err := RequestMoreData(s)
	if !errors.Is(err, ErrInvalidState) || !errors.Is(err, ErrDisconnected) {
		t.Fatalf("arm on closed state: %v", err)
	}
	if err := Send(s, "late\n", nil); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("send on closed state: %v", err)
	}
}

func TestSendPreservesOrder(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()
	s := Adopt(server, func(*State) {})
	defer Close(s)

	done := make(chan error, 3)
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		if err := Send(s, line, func(err error) { done <- err }); err != nil {
			t.Fatalf("send %q: %v", line, err)
		}
	}

	r := bufio.NewReader(peer)
	for _, want := range []string{"one", "two", "three"} {
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	for range 3 {
		if err := <-done; err != nil {
			t.Fatalf("write completion: %v", err)
		}
	}
}

func TestConnectAndListen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := make(chan *State, 1)
	l, err := Listen(ctx, func(s *State) { accepted <- s }, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cb, events := recorder()
	c := Connect(ctx, cb, l.Addr().String())
	defer Close(c)
	if st := waitState(t, events); st != Connected {
		t.Fatalf("connect reported %v", st)
	}

	var srv *State
	select {
	case srv = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection accepted")
	}
	defer Close(srv)

	if err := Send(srv, "hi\n", nil); err != nil {
		t.Fatal(err)
	}
	if st := waitState(t, events); st != HasData {
		t.Fatalf("client read reported %v", st)
	}
	if got := string(c.Drain()); got != "hi\n" {
		t.Fatalf("client got %q", got)
	}
}

func TestListenerAcceptsMany(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := make(chan *State, 4)
	l, err := Listen(ctx, func(s *State) { accepted <- s }, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
	}
	for i := range 3 {
		select {
		case s := <-accepted:
			Close(s)
		case <-time.After(2 * time.Second):
			t.Fatalf("accepted %d of 3", i)
		}
	}
}

func TestConnectFailureReportsDisconnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cb, events := recorder()
	Connect(context.Background(), cb, addr)
	if st := waitState(t, events); st != Disconnected {
		t.Fatalf("dial to closed port reported %v", st)
	}
}

func TestListenerThrottlesPerAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := make(chan *State, 2)
	cfg := ListenConfig{PerIPRate: 0, PerIPBurst: 1}
	l, err := cfg.Listen(ctx, func(s *State) { accepted <- s }, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	select {
	case s := <-accepted:
		defer Close(s)
	case <-time.After(2 * time.Second):
		t.Fatalf("first connection not accepted")
	}

	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("throttled connection read: %v, want EOF", err)
	}
	select {
	case <-accepted:
		t.Fatalf("throttled connection reached the callback")
	default:
	}
}

func TestWebSocketConnCarriesLines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		Adopt(WebSocketConn(ws), func(s *State) {
			switch s.Status() {
			case Connected:
				RequestMoreData(s)
			case HasData:
				received <- string(s.Drain())
				Send(s, "world\n", nil)
			}
		})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-received:
		if got != "hello\n" {
			t.Fatalf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the line")
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "world\n" {
		t.Fatalf("client got %q", msg)
	}
}

func TestWebSocketCloseDoesNotWaitOnStalledPeer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	adopted := make(chan *State, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		adopted <- Adopt(WebSocketConn(ws), func(*State) {})
	}))
	defer srv.Close()

	// the client never reads
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	var s *State
	select {
	case s = <-adopted:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never adopted the websocket")
	}

	line := strings.Repeat("x", 1<<20) + "\n"
	full := false
	for range 4 * outboxSize {
		if err := Send(s, line, nil); errors.Is(err, ErrSendQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatalf("outbox never filled against a peer that does not read")
	}
	time.Sleep(100 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		Close(s)
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close blocked on a stalled peer")
	}
	if s.Status() != Disconnected {
		t.Fatalf("status %v after close", s.Status())
	}
}
