package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oskarlind/tradingpost/internal/hub"
	"github.com/oskarlind/tradingpost/internal/market"
	"github.com/oskarlind/tradingpost/internal/notify"
)

// memBank is an in-memory market.Bank for exercising the HTTP surface
// without a bank service.
type memBank struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemBank() *memBank {
	return &memBank{balances: make(map[string]int64)}
}

func (b *memBank) open(name string, cents int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[name] = cents
}

func (b *memBank) Account(ctx context.Context, name string) (market.Account, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.balances[name]; !ok {
		return nil, false, nil
	}
	return &memAccount{bank: b, name: name}, true, nil
}

type memAccount struct {
	bank *memBank
	name string
}

func (a *memAccount) Balance(ctx context.Context) (int64, error) {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	return a.bank.balances[a.name], nil
}

func (a *memAccount) Deposit(ctx context.Context, cents int64) error {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	a.bank.balances[a.name] += cents
	return nil
}

func (a *memAccount) Withdraw(ctx context.Context, cents int64) error {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	a.bank.balances[a.name] -= cents
	return nil
}

type fixture struct {
	srv  *httptest.Server
	bank *memBank
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bank := newMemBank()
	callbackHub := hub.New(hub.DefaultConfig(), logger)
	dispatcher := notify.NewDispatcher(callbackHub, 16, logger)
	engine := market.NewEngine(bank, dispatcher, logger)

	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dispatcher.Stop(context.Background())
		callbackHub.Stop(context.Background())
	})

	srv := httptest.NewServer(New(engine, callbackHub, dispatcher, logger).Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, bank: bank}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("malformed response %q: %v", data, err)
		}
	}
	return resp, decoded
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("malformed response %q: %v", data, err)
		}
	}
	return resp, decoded
}

func (f *fixture) attach(t *testing.T, trader string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?trader=" + trader
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("attach %s: %v", trader, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

const (
	bikeJSON = `{"name": "bike", "price": "30.00"}`
)

func TestTradeFlow(t *testing.T) {
	f := newFixture(t)
	f.bank.open("alice", 0)
	f.bank.open("bob", 10000)

	for _, trader := range []string{"alice", "bob"} {
		resp, _ := f.post(t, "/register", `{"trader":"`+trader+`"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("register %s status = %d", trader, resp.StatusCode)
		}
	}

	resp, body := f.post(t, "/sell", `{"item":`+bikeJSON+`,"trader":"alice"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d, body %v", resp.StatusCode, body)
	}

	resp, body = f.get(t, "/items")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("GET /items = %d %v, want count 1", resp.StatusCode, body)
	}
	if listing, _ := body["listing"].(string); !strings.Contains(listing, "bike") {
		t.Errorf("listing = %q, want bike mentioned", listing)
	}

	resp, body = f.post(t, "/buy", `{"item":`+bikeJSON+`,"trader":"bob"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy status = %d, body %v", resp.StatusCode, body)
	}

	if got := f.bank.balances["bob"]; got != 7000 {
		t.Errorf("buyer balance = %d, want 7000", got)
	}
	if got := f.bank.balances["alice"]; got != 3000 {
		t.Errorf("seller balance = %d, want 3000", got)
	}

	_, body = f.get(t, "/items")
	if body["count"] != float64(0) {
		t.Errorf("items after sale = %v, want empty", body["count"])
	}
	if listing, _ := body["listing"].(string); listing != market.EmptyListing {
		t.Errorf("listing = %q, want %q", listing, market.EmptyListing)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	f := newFixture(t)
	f.bank.open("alice", 0)
	f.bank.open("bob", 100)

	tests := []struct {
		name       string
		setup      func()
		path, body string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "sell unregistered",
			path:       "/sell",
			body:       `{"item":` + bikeJSON + `,"trader":"alice"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   market.CodeNotRegistered,
		},
		{
			name: "double register",
			setup: func() {
				f.post(t, "/register", `{"trader":"alice"}`)
				f.post(t, "/register", `{"trader":"bob"}`)
			},
			path:       "/register",
			body:       `{"trader":"alice"}`,
			wantStatus: http.StatusConflict,
			wantCode:   market.CodeAlreadyRegistered,
		},
		{
			name:       "buy unlisted",
			path:       "/buy",
			body:       `{"item":` + bikeJSON + `,"trader":"bob"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   market.CodeNotListed,
		},
		{
			name: "double sell",
			setup: func() {
				f.post(t, "/sell", `{"item":`+bikeJSON+`,"trader":"alice"}`)
			},
			path:       "/sell",
			body:       `{"item":` + bikeJSON + `,"trader":"alice"}`,
			wantStatus: http.StatusConflict,
			wantCode:   market.CodeAlreadyListed,
		},
		{
			name:       "underfunded buy",
			path:       "/buy",
			body:       `{"item":` + bikeJSON + `,"trader":"bob"}`,
			wantStatus: http.StatusPaymentRequired,
			wantCode:   market.CodeInsufficientFunds,
		},
		{
			name: "seller without account",
			setup: func() {
				f.post(t, "/register", `{"trader":"ghost"}`)
			},
			path:       "/sell",
			body:       `{"item":{"name":"lamp","price":"5.00"},"trader":"ghost"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   market.CodeNoSellerAccount,
		},
		{
			name: "duplicate wish",
			setup: func() {
				f.post(t, "/wish", `{"item":{"name":"lamp","price":"5.00"},"trader":"bob"}`)
			},
			path:       "/wish",
			body:       `{"item":{"name":"lamp","price":"7.00"},"trader":"bob"}`,
			wantStatus: http.StatusConflict,
			wantCode:   market.CodeDuplicateWish,
		},
		{
			name:       "missing trader name",
			path:       "/sell",
			body:       `{"item":` + bikeJSON + `}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BadRequest",
		},
		{
			name:       "negative price",
			path:       "/sell",
			body:       `{"item":{"name":"bike","price":"-1.00"},"trader":"alice"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			resp, body := f.post(t, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tt.wantStatus, body)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestCallbackDelivery(t *testing.T) {
	f := newFixture(t)
	f.bank.open("alice", 0)
	f.bank.open("bob", 10000)

	for _, trader := range []string{"alice", "bob"} {
		if resp, _ := f.post(t, "/register", `{"trader":"`+trader+`"}`); resp.StatusCode != http.StatusOK {
			t.Fatalf("register %s failed", trader)
		}
	}

	aliceConn := f.attach(t, "alice")
	bobConn := f.attach(t, "bob")

	// bob wishes, alice sells at the wished price: bob gets an
	// availability callback.
	if resp, _ := f.post(t, "/wish", `{"item":`+bikeJSON+`,"trader":"bob"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("wish failed")
	}
	if resp, _ := f.post(t, "/sell", `{"item":`+bikeJSON+`,"trader":"alice"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("sell failed")
	}

	bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame hub.Frame
	if err := bobConn.ReadJSON(&frame); err != nil {
		t.Fatalf("wish callback not delivered: %v", err)
	}
	if !strings.Contains(frame.Message, "available on the market") {
		t.Errorf("wish callback message = %q", frame.Message)
	}

	// bob buys: alice gets a sold callback.
	if resp, _ := f.post(t, "/buy", `{"item":`+bikeJSON+`,"trader":"bob"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("buy failed")
	}

	aliceConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := aliceConn.ReadJSON(&frame); err != nil {
		t.Fatalf("sold callback not delivered: %v", err)
	}
	if !strings.Contains(frame.Message, "has been sold") {
		t.Errorf("sold callback message = %q", frame.Message)
	}
}

func TestAttachRequiresRegistration(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?trader=nobody"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("attach of unregistered trader succeeded")
	} else if resp != nil && resp.StatusCode != http.StatusNotFound {
		t.Errorf("attach status = %d, want 404", resp.StatusCode)
	}

	if _, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.srv.URL, "http")+"/ws", nil); err == nil {
		t.Error("attach without trader name succeeded")
	} else if resp != nil && resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nameless attach status = %d, want 400", resp.StatusCode)
	}
}

func TestUnregisterDetachesCallbackConnection(t *testing.T) {
	f := newFixture(t)
	f.bank.open("alice", 0)

	if resp, _ := f.post(t, "/register", `{"trader":"alice"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("register failed")
	}
	conn := f.attach(t, "alice")

	if resp, _ := f.post(t, "/unregister", `{"trader":"alice"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("unregister failed")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("callback connection still open after unregister")
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", resp.StatusCode, body)
	}
	if _, ok := body["engine"]; !ok {
		t.Error("healthz missing engine stats")
	}
}
