package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEntry_SignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("12.34000000")

	credit := &Entry{ID: "e-1", Kind: EntryKindCredit, Amount: amount}
	got, err := credit.SignedAmount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(amount) {
		t.Errorf("expected credit to add %s, got %s", amount, got)
	}

	debit := &Entry{ID: "e-2", Kind: EntryKindDebit, Amount: amount}
	got, err = debit.SignedAmount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(amount.Neg()) {
		t.Errorf("expected debit to subtract %s, got %s", amount, got)
	}

	unknown := &Entry{ID: "e-3", Kind: EntryKind("adjustment"), Amount: amount}
	if _, err := unknown.SignedAmount(); !errors.Is(err, ErrUnknownEntryKind) {
		t.Errorf("expected ErrUnknownEntryKind, got %v", err)
	}
}
