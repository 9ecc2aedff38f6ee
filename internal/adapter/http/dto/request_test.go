package dto

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/usecase"
)

func TestCreateAccountRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateAccountRequest{
		UserID:      "user-1",
		AccountType: "checking",
		Currency:    "USD",
	}

	got := req.ToUseCaseInput()
	want := usecase.CreateAccountInput{
		UserID:      "user-1",
		AccountType: "checking",
		Currency:    "USD",
	}

	if got != want {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestMoneyRequestsDecodeAmounts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "quoted amount", body: `{"amount":"10.12345678","currency":"USD","source_account_id":"a","destination_account_id":"b"}`, want: "10.12345678"},
		{name: "numeric amount", body: `{"amount":40,"currency":"USD","source_account_id":"a","destination_account_id":"b"}`, want: "40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req TransferRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("decode: %v", err)
			}

			in := req.ToUseCaseInput()
			if !in.Amount.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("amount = %s, want %s", in.Amount, tt.want)
			}
			if in.SourceAccountID != "a" || in.DestinationAccountID != "b" || in.Currency != "USD" {
				t.Fatalf("unexpected input %+v", in)
			}
		})
	}
}

func TestMoneyRequestRejectsMalformedAmount(t *testing.T) {
	var req DepositRequest
	if err := json.Unmarshal([]byte(`{"amount":"ten"}`), &req); err == nil {
		t.Fatalf("expected decode error for malformed amount")
	}
}

func TestWithdrawAndDepositInputs(t *testing.T) {
	dep := (&DepositRequest{Amount: decimal.NewFromInt(5), Currency: "EUR", DestinationAccountID: "d", Description: "top up"}).ToUseCaseInput()
	if dep.DestinationAccountID != "d" || dep.Description != "top up" {
		t.Fatalf("unexpected deposit input %+v", dep)
	}

	wd := (&WithdrawRequest{Amount: decimal.NewFromInt(5), Currency: "EUR", SourceAccountID: "s"}).ToUseCaseInput()
	if wd.SourceAccountID != "s" || wd.Currency != "EUR" {
		t.Fatalf("unexpected withdraw input %+v", wd)
	}
}
