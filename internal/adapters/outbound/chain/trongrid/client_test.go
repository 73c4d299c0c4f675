//go:build !integration

package trongrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "depositgate/internal/shared_kernel/errors"
)

const (
	watchedAddress  = "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW"
	usdtContract    = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	transfersAnswer = `{
		"success": true,
		"data": [
			{
				"transaction_id": "tx_match",
				"from": "TFrom000000000000000000000000000001",
				"to": "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
				"value": "25000000",
				"block": 1200,
				"block_timestamp": 1748779200000,
				"confirmations": 7,
				"token_info": {"symbol": "USDT", "address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}
			},
			{
				"transaction_id": "tx_wrong_token",
				"to": "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
				"value": "25000000",
				"block": 1201,
				"confirmations": 7,
				"token_info": {"symbol": "JST", "address": "TCFLL5dx5ZJdKnWuesXxi1VPwjLVmWZZy9"}
			},
			{
				"transaction_id": "tx_stale_block",
				"to": "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
				"value": "25000000",
				"block": 900,
				"confirmations": 30,
				"token_info": {"symbol": "USDT", "address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}
			}
		]
	}`
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:         serverURL,
		APIKey:          "test-key",
		ContractAddress: usdtContract,
		AssetSymbol:     "USDT",
		Timeout:         time.Second,
		PageLimit:       20,
	})
}

func TestFetchTransactionsFiltersRelevantTransfers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/v1/accounts/"+watchedAddress+"/transactions/trc20" {
			t.Fatalf("unexpected path %s", got)
		}
		if got := r.Header.Get("TRON-PRO-API-KEY"); got != "test-key" {
			t.Fatalf("expected api key header, got %q", got)
		}
		query := r.URL.Query()
		if got := query.Get("contract_address"); got != usdtContract {
			t.Fatalf("expected contract filter, got %q", got)
		}
		if got := query.Get("only_confirmed"); got != "true" {
			t.Fatalf("expected only_confirmed=true, got %q", got)
		}
		if got := query.Get("only_to"); got != "true" {
			t.Fatalf("expected only_to=true, got %q", got)
		}
		if got := query.Get("limit"); got != "20" {
			t.Fatalf("expected limit=20, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(transfersAnswer))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	observations, appErr := client.FetchTransactions(context.Background(), watchedAddress, 1000)
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}
	observation := observations[0]
	if observation.TxHash != "tx_match" {
		t.Fatalf("unexpected tx hash %s", observation.TxHash)
	}
	if observation.AmountMinor != "25000000" {
		t.Fatalf("unexpected amount %s", observation.AmountMinor)
	}
	if observation.BlockHeight != 1200 || observation.Confirmations != 7 {
		t.Fatalf("unexpected observation %+v", observation)
	}
}

func TestFetchTransactionsFollowsPageFingerprint(t *testing.T) {
	firstPage := `{
		"success": true,
		"data": [
			{
				"transaction_id": "tx_page_one",
				"to": "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
				"value": "10000000",
				"block": 1300,
				"confirmations": 4,
				"token_info": {"symbol": "USDT", "address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}
			}
		],
		"meta": {"fingerprint": "fp_next"}
	}`
	secondPage := `{
		"success": true,
		"data": [
			{
				"transaction_id": "tx_page_two",
				"to": "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
				"value": "5000000",
				"block": 1250,
				"confirmations": 9,
				"token_info": {"symbol": "USDT", "address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}
			}
		]
	}`

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		switch fingerprint := r.URL.Query().Get("fingerprint"); fingerprint {
		case "":
			_, _ = w.Write([]byte(firstPage))
		case "fp_next":
			_, _ = w.Write([]byte(secondPage))
		default:
			t.Fatalf("unexpected fingerprint %q", fingerprint)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	observations, appErr := client.FetchTransactions(context.Background(), watchedAddress, 1000)
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if requests != 2 {
		t.Fatalf("expected the cursor to be followed across 2 requests, got %d", requests)
	}
	if len(observations) != 2 {
		t.Fatalf("expected transfers from both pages, got %d", len(observations))
	}
	if observations[0].TxHash != "tx_page_one" || observations[1].TxHash != "tx_page_two" {
		t.Fatalf("unexpected observations %+v", observations)
	}
}

func TestFetchTransactionsMapsRateLimitToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, appErr := client.FetchTransactions(context.Background(), watchedAddress, 0)
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Type != apperrors.TypeUnavailable || appErr.Code != "provider_rate_limited" {
		t.Fatalf("expected unavailable provider_rate_limited, got %s %s", appErr.Type, appErr.Code)
	}
	if got := appErr.Details["retry_after_seconds"]; got != 12 {
		t.Fatalf("expected retry_after_seconds 12, got %v", got)
	}
}

func TestFetchTransactionsMapsServerErrorToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, appErr := client.FetchTransactions(context.Background(), watchedAddress, 0)
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Type != apperrors.TypeUnavailable || appErr.Code != "provider_request_failed" {
		t.Fatalf("expected unavailable provider_request_failed, got %s %s", appErr.Type, appErr.Code)
	}
}

func TestFetchTransactionsMapsProviderFailureFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "quota exceeded"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, appErr := client.FetchTransactions(context.Background(), watchedAddress, 0)
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Type != apperrors.TypeUnavailable {
		t.Fatalf("expected unavailable, got %s", appErr.Type)
	}
	if got := appErr.Details["provider_error"]; got != "quota exceeded" {
		t.Fatalf("expected provider_error detail, got %v", got)
	}
}

func TestFetchTransactionsRequiresAddress(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	_, appErr := client.FetchTransactions(context.Background(), "  ", 0)
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != "address_missing" {
		t.Fatalf("expected address_missing, got %s", appErr.Code)
	}
}
