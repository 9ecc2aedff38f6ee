package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/auth"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	header http.Header
}

func newFakeAPI(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
			header: r.Header.Clone(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestAccountCommands(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{name: "create", args: []string{"account", "create", "--user", "u-1", "--currency", "USD"}, wantMethod: http.MethodPost, wantPath: "/api/v1/accounts"},
		{name: "get", args: []string{"account", "get", "acc-1"}, wantMethod: http.MethodGet, wantPath: "/api/v1/accounts/acc-1"},
		{name: "list", args: []string{"account", "list", "--limit", "5"}, wantMethod: http.MethodGet, wantPath: "/api/v1/accounts", wantQuery: "limit=5&offset=0"},
		{name: "balance", args: []string{"account", "balance", "acc-1"}, wantMethod: http.MethodGet, wantPath: "/api/v1/accounts/acc-1/balance"},
		{name: "ledger", args: []string{"account", "ledger", "acc-1"}, wantMethod: http.MethodGet, wantPath: "/api/v1/accounts/acc-1/ledger"},
		{name: "freeze", args: []string{"account", "freeze", "acc-1"}, wantMethod: http.MethodPost, wantPath: "/api/v1/accounts/acc-1/freeze"},
		{name: "unfreeze", args: []string{"account", "unfreeze", "acc-1"}, wantMethod: http.MethodPost, wantPath: "/api/v1/accounts/acc-1/unfreeze"},
		{name: "transactions", args: []string{"account", "transactions", "acc-1"}, wantMethod: http.MethodGet, wantPath: "/api/v1/accounts/acc-1/transactions", wantQuery: "limit=20&offset=0"},
		{name: "tx get", args: []string{"tx", "get", "tx-1"}, wantMethod: http.MethodGet, wantPath: "/api/v1/transactions/tx-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := newFakeAPI(t, http.StatusOK, `{"id":"x"}`)

			out, err := execute(t, append(tt.args, "--url", srv.URL, "--token", "tok")...)
			if err != nil {
				t.Fatalf("command failed: %v", err)
			}
			if len(*seen) != 1 {
				t.Fatalf("expected one request, got %d", len(*seen))
			}

			req := (*seen)[0]
			if req.method != tt.wantMethod || req.path != tt.wantPath || req.query != tt.wantQuery {
				t.Fatalf("unexpected request %s %s?%s", req.method, req.path, req.query)
			}
			if got := req.header.Get("Authorization"); got != "Bearer tok" {
				t.Fatalf("expected bearer token, got %q", got)
			}
			if out != "{\n  \"id\": \"x\"\n}\n" {
				t.Fatalf("unexpected output:\n%s", out)
			}
		})
	}
}

func TestTransferCommandSendsBodyAndIdempotencyKey(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusCreated, `{"id":"tx-1","status":"completed"}`)

	_, err := execute(t, "transfer", "--url", srv.URL,
		"--from", "acc-1", "--to", "acc-2", "--amount", "12.50", "--currency", "USD",
		"--idempotency-key", "k-1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	req := (*seen)[0]
	if req.path != "/api/v1/transfers" {
		t.Fatalf("unexpected path %s", req.path)
	}
	if got := req.header.Get("Idempotency-Key"); got != "k-1" {
		t.Fatalf("expected idempotency key, got %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(req.body), &body); err != nil {
		t.Fatalf("bad body %s: %v", req.body, err)
	}
	if body["amount"] != "12.5" || body["source_account_id"] != "acc-1" || body["destination_account_id"] != "acc-2" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDepositRejectsBadAmount(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusCreated, `{}`)

	_, err := execute(t, "deposit", "--url", srv.URL, "--to", "acc-1", "--amount", "ten", "--currency", "USD")
	if err == nil || !strings.Contains(err.Error(), "invalid amount") {
		t.Fatalf("expected invalid amount error, got %v", err)
	}
	if len(*seen) != 0 {
		t.Fatalf("no request should be sent")
	}
}

func TestWithdrawSurfacesFailedTransaction(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusUnprocessableEntity,
		`{"error":"failed to withdraw","message":"insufficient funds","transaction_id":"tx-9"}`)

	_, err := execute(t, "withdraw", "--url", srv.URL, "--from", "acc-1", "--amount", "5", "--currency", "USD")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"status 422", "insufficient funds", "tx-9"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestLedgerConsistency(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusOK, `{"consistent":true}`)
	out, err := execute(t, "ledger", "consistency", "--url", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "PASSED") {
		t.Fatalf("expected PASSED, got %s", out)
	}

	srv, _ = newFakeAPI(t, http.StatusConflict, `{"consistent":false,"negative_accounts":["acc-1"]}`)
	out, err = execute(t, "ledger", "consistency", "--url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "FAILED") {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(out, "acc-1") {
		t.Fatalf("expected report in output, got %s", out)
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--subject", "ops", "--role", "operator", "--ttl", "1h")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	claims, err := auth.NewJWTManager("s3cret", time.Hour).Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if p := claims.Principal(); p.Subject != "ops" || p.Role != domain.RoleOperator {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := execute(t, "token", "--secret", "s3cret", "--subject", "ops", "--role", "root"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}
