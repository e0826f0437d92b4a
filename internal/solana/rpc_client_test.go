package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcHandler decodes the request and answers with result.
func rpcHandler(t *testing.T, wantMethod string, result interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != wantMethod {
			t.Errorf("expected method %s, got %s", wantMethod, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getAccountInfo", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": map[string]interface{}{
			"lamports":   uint64(1461600),
			"owner":      CandyMachineProgramID,
			"data":       []string{"AQID", "base64"},
			"executable": false,
			"rentEpoch":  uint64(361),
		},
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "addr")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account, got nil")
	}
	if info.Owner != CandyMachineProgramID {
		t.Errorf("expected owner %s, got %s", CandyMachineProgramID, info.Owner)
	}

	data, err := info.DecodeData()
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if len(data) != 3 || data[0] != 1 || data[2] != 3 {
		t.Errorf("unexpected data %v", data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getAccountInfo", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   nil,
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getMultipleAccounts", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": []interface{}{
			map[string]interface{}{"lamports": 1, "owner": "o1", "data": []string{"AA==", "base64"}},
			nil,
		},
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	accounts, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(accounts))
	}
	if accounts[0] == nil || accounts[0].Owner != "o1" {
		t.Errorf("unexpected first account %+v", accounts[0])
	}
	if accounts[1] != nil {
		t.Errorf("expected nil second account, got %+v", accounts[1])
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getTokenAccountsByOwner", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": []interface{}{
			map[string]interface{}{
				"pubkey": "ata1",
				"account": map[string]interface{}{
					"data": map[string]interface{}{
						"parsed": map[string]interface{}{
							"info": map[string]interface{}{
								"mint":  "mint1",
								"owner": "wallet",
								"tokenAmount": map[string]interface{}{
									"amount":   "1",
									"decimals": 0,
								},
							},
						},
					},
				},
			},
		},
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	accounts, err := client.GetTokenAccountsByOwner(context.Background(), "wallet", TokenProgramID)
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Mint != "mint1" || accounts[0].Amount != 1 || accounts[0].Address != "ata1" {
		t.Errorf("unexpected account %+v", accounts[0])
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getBalance", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   uint64(2500000000),
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balance, err := client.GetBalance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 2500000000 {
		t.Errorf("expected 2500000000, got %d", balance)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_NoRetryWhenDisabled(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(0))

	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError_NotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid param: WrongSize",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	_, err := client.GetAccountInfo(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_Observer(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, "getSlot", int64(42)))
	defer server.Close()

	var gotMethod string
	client := NewHTTPClient(server.URL, WithObserver(func(method string, _ time.Duration, err error) {
		gotMethod = method
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}))

	if _, err := client.GetSlot(context.Background()); err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if gotMethod != "getSlot" {
		t.Errorf("expected observer method getSlot, got %q", gotMethod)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(10),
		WithRetryDelay(1*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error on context cancellation")
	}
}
