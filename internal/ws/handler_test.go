package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/pj-companion/internal/chat"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type fakeReplier struct {
	mu   sync.Mutex
	seen []string
	fail error
}

func (f *fakeReplier) Reply(_ context.Context, sessionID, message string) (chat.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID == "" {
		return chat.Result{}, chat.ErrMissingSessionID
	}
	if f.fail != nil {
		return chat.Result{}, &chat.CompletionError{Err: f.fail}
	}
	f.seen = append(f.seen, message)
	return chat.Result{Reply: "echo: " + message, SessionID: sessionID, Kind: chat.KindCompletion}, nil
}

func startServer(t *testing.T, replier *fakeReplier, origins []string) (*httptest.Server, *ConnManager) {
	t.Helper()
	conns := NewConnManager()
	srv := httptest.NewServer(NewHandler(replier, conns, origins))
	t.Cleanup(srv.Close)
	return srv, conns
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, in any) OutboundFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out OutboundFrame
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestChatOverWebSocket(t *testing.T) {
	replier := &fakeReplier{}
	srv, _ := startServer(t, replier, []string{"*"})
	conn := dial(t, srv)

	for _, msg := range []string{"one", "two", "three"} {
		out := roundTrip(t, conn, InboundFrame{SessionID: "s1", Message: msg})
		if out.Type != TypeReply || out.Reply != "echo: "+msg || out.SessionID != "s1" {
			t.Fatalf("reply = %+v", out)
		}
	}
	replier.mu.Lock()
	defer replier.mu.Unlock()
	if got := strings.Join(replier.seen, ","); got != "one,two,three" {
		t.Errorf("messages handled in order %q", got)
	}
}

func TestWebSocketErrors(t *testing.T) {
	srv, _ := startServer(t, &fakeReplier{}, []string{"*"})
	conn := dial(t, srv)

	out := roundTrip(t, conn, InboundFrame{Message: "hi"})
	if out.Type != TypeError || out.Status != http.StatusBadRequest {
		t.Errorf("missing session id frame = %+v", out)
	}

	out = roundTrip(t, conn, map[string]string{"type": "bogus"})
	if out.Type != TypeError || !strings.Contains(out.Error, "bogus") {
		t.Errorf("unknown type frame = %+v", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Type != TypeError || out.Error != "invalid JSON frame" {
		t.Errorf("bad JSON frame = %+v", out)
	}

	// The connection survives all of the above.
	out = roundTrip(t, conn, InboundFrame{Type: TypePing})
	if out.Type != TypePong {
		t.Errorf("ping frame = %+v", out)
	}
}

func TestWebSocketCompletionFailure(t *testing.T) {
	srv, _ := startServer(t, &fakeReplier{fail: errors.New("upstream down")}, []string{"*"})
	conn := dial(t, srv)

	out := roundTrip(t, conn, InboundFrame{SessionID: "s1", Message: "hi"})
	if out.Status != http.StatusInternalServerError || !strings.Contains(out.Error, "upstream down") {
		t.Errorf("failure frame = %+v", out)
	}
}

func TestWebSocketOriginRejected(t *testing.T) {
	srv, _ := startServer(t, &fakeReplier{}, []string{"https://app.example"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	if err == nil {
		t.Fatal("Dial() succeeded for a rejected origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestConnManagerCloseAll(t *testing.T) {
	srv, conns := startServer(t, &fakeReplier{}, []string{"*"})
	conn := dial(t, srv)
	roundTrip(t, conn, InboundFrame{Type: TypePing})

	if got := conns.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	conns.CloseAll("shutting down")
	if got := conns.Count(); got != 0 {
		t.Errorf("Count() after CloseAll = %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("close status = %v, want going away", websocket.CloseStatus(err))
	}
}
