package solana

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribeHandler confirms every logsSubscribe with subID and follows each
// confirmation with one notification carrying signature. upgrades counts
// accepted connections.
func subscribeHandler(upgrades *atomic.Int64, subID int64, signature string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		upgrades.Add(1)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if req.Method != "logsSubscribe" {
				continue
			}

			confirm := map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  subID,
			}
			if err := conn.WriteJSON(confirm); err != nil {
				return
			}

			notif := struct {
				JSONRPC string                `json:"jsonrpc"`
				Method  string                `json:"method"`
				Params  *wsNotificationParams `json:"params"`
			}{
				JSONRPC: "2.0",
				Method:  "logsNotification",
				Params: &wsNotificationParams{
					Subscription: subID,
					Result: wsNotificationResult{
						Context: &wsContext{Slot: 100},
						Value: wsLogsValue{
							Signature: signature,
							Logs:      []string{"Program log: Instruction: InitializePool"},
						},
					},
				},
			}
			if err := conn.WriteJSON(notif); err != nil {
				return
			}
		}
	})
}

func wsTestURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	var upgrades atomic.Int64
	server := httptest.NewServer(subscribeHandler(&upgrades, 1, "sig"))
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsTestURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	var upgrades atomic.Int64
	server := httptest.NewServer(subscribeHandler(&upgrades, 12345, "testsig"))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsTestURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Mentions: []string{"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("signature = %s, want testsig", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("got %d logs, want 1", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("slot = %d, want 100", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_Close(t *testing.T) {
	var upgrades atomic.Int64
	server := httptest.NewServer(subscribeHandler(&upgrades, 1, "sig"))
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsTestURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe.
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	var upgrades atomic.Int64
	server := httptest.NewServer(subscribeHandler(&upgrades, 1, "sig"))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsTestURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_ReconnectsAfterOutage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	var firstUpgrades, secondUpgrades atomic.Int64
	srv1 := &http.Server{Handler: subscribeHandler(&firstUpgrades, 7, "before-outage")}
	go srv1.Serve(ln)

	config := &WSClientConfig{
		ReconnectDelay:    50 * time.Millisecond,
		MaxReconnectDelay: 200 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
		SubscribeTimeout:  2 * time.Second,
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, "ws://"+addr, config)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "before-outage" {
			t.Fatalf("signature = %s, want before-outage", notif.Signature)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first notification")
	}

	// Kill the endpoint and leave it down long enough for at least one
	// redial to fail, then bring it back on the same address. The client
	// must keep redialing through the failed attempts, reconnect, and
	// resubscribe on the original channel.
	srv1.Close()
	time.Sleep(300 * time.Millisecond)

	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("relisten on %s: %v", addr, err)
	}
	srv2 := &http.Server{Handler: subscribeHandler(&secondUpgrades, 8, "after-outage")}
	go srv2.Serve(ln2)
	defer srv2.Close()

	deadline := time.After(10 * time.Second)
	recovered := false
	for !recovered {
		select {
		case notif := <-ch:
			if notif.Signature == "after-outage" {
				recovered = true
			}
		case <-deadline:
			t.Fatal("client never resubscribed after the endpoint came back")
		}
	}

	_, reconnects, _ := client.Stats()
	if reconnects < 1 {
		t.Errorf("reconnects = %d, want at least 1", reconnects)
	}
	if secondUpgrades.Load() < 1 {
		t.Errorf("second server upgrades = %d, want at least 1", secondUpgrades.Load())
	}
}
