package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger/ledgertest"
	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/portal"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
	"github.com/gotuzzoj23/SolanaDApp/internal/wallet"
)

// keyProvider is a wallet that approves every request
type keyProvider struct {
	key solana.PrivateKey
}

func (p *keyProvider) Connect(context.Context, wallet.ConnectOptions) (solana.PublicKey, error) {
	return p.key.PublicKey(), nil
}

func (p *keyProvider) SignMessage(_ context.Context, message []byte) (solana.Signature, error) {
	return p.key.Sign(message)
}

func setupServer(t *testing.T) (*httptest.Server, *ledgertest.Node, *logger.Logger) {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	handle, err := identity.NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("NewRandomAccountHandle: %v", err)
	}

	schema := ledger.DefaultSchema(solana.NewWallet().PublicKey())
	node := ledgertest.New(t, schema)
	notices := logger.New(50)

	ctrl, err := portal.New(portal.Options{
		Session: wallet.NewSession(&keyProvider{key: key}, notices),
		Handle:  handle,
		Build: portal.LedgerBuilder(ledger.NetworkConfig{
			Endpoint:     node.URL(),
			PollInterval: 5 * time.Millisecond,
		}, schema),
		Notices: notices,
	})
	if err != nil {
		t.Fatalf("portal.New: %v", err)
	}

	srv := NewServer(ctrl, notices, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
		ctrl.Close()
	})
	return ts, node, notices
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readSnapshot reads snapshots until match accepts one
func readSnapshot(t *testing.T, conn *websocket.Conn, match func(types.Snapshot) bool) types.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var snap types.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(snap) {
			return snap
		}
	}
}

func TestEndToEndFlow(t *testing.T) {
	ts, _, _ := setupServer(t)
	conn := dial(t, ts, "/ws/state")

	first := readSnapshot(t, conn, func(types.Snapshot) bool { return true })
	if first.Identity.Connected() {
		t.Fatalf("Expected a disconnected start, got %+v", first.Identity)
	}

	if resp := post(t, ts, "/api/connect", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("connect: status %d", resp.StatusCode)
	}
	readSnapshot(t, conn, func(s types.Snapshot) bool { return s.NeedsSetup() })

	if resp := post(t, ts, "/api/initialize", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize: status %d", resp.StatusCode)
	}
	if resp := post(t, ts, "/api/initialize", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("second initialize: expected conflict, got %d", resp.StatusCode)
	}

	if resp := post(t, ts, "/api/input", `{"text":"https://example.com/a.gif"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("input: status %d", resp.StatusCode)
	}
	resp := post(t, ts, "/api/submit", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}

	snap := readSnapshot(t, conn, func(s types.Snapshot) bool {
		return s.State != nil && len(s.State.Entries) == 1
	})
	if snap.State.Entries[0].Content != "https://example.com/a.gif" {
		t.Errorf("Unexpected entry %+v", snap.State.Entries[0])
	}
	if snap.Input != "" {
		t.Errorf("Expected input cleared, got %q", snap.Input)
	}
}

func TestSubmitRejectedBeforeConnect(t *testing.T) {
	ts, node, _ := setupServer(t)

	resp := post(t, ts, "/api/submit", `{"content":"https://example.com/a.gif"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected conflict, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["kind"] != string(types.FailureNotConnected) {
		t.Errorf("Expected not_connected, got %+v", body)
	}
	if node.TotalCalls() != 0 {
		t.Errorf("Expected no RPC calls, got %d", node.TotalCalls())
	}
}

func TestNoticesWS(t *testing.T) {
	ts, _, notices := setupServer(t)
	notices.Info("history")

	conn := dial(t, ts, "/ws/notices")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg logger.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Text != "history" {
		t.Errorf("Expected history first, got %+v", msg)
	}

	time.Sleep(5 * time.Millisecond)
	notices.Notice("error", types.FailureTransaction, "op", "live")
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Text != "live" || msg.Code != types.FailureTransaction {
		t.Errorf("Unexpected live notice %+v", msg)
	}
}

func TestStateStream(t *testing.T) {
	ts, _, _ := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/state/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if strings.TrimSpace(event) != "event: snapshot" || !strings.HasPrefix(data, "data: {") {
		t.Errorf("Unexpected event %q %q", event, data)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	ts, _, _ := setupServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/state"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected foreign origin to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

func TestCacheHeaders(t *testing.T) {
	ts, _, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		t.Errorf("Expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestDocsRoute(t *testing.T) {
	ts, _, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/docs/api.adoc")
	if err != nil {
		t.Fatalf("GET docs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without a docs service, got %d", resp.StatusCode)
	}
}
