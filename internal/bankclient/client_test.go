package bankclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/bank/bankhttp"
)

func newBankFixture(t *testing.T) (*Client, *bank.Ledger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := bank.NewLedger(logger)
	srv := httptest.NewServer(bankhttp.NewServer(ledger, logger).Router())
	t.Cleanup(srv.Close)
	return New(srv.URL, WithLogger(logger)), ledger
}

func TestAccountLookup(t *testing.T) {
	client, ledger := newBankFixture(t)
	ctx := context.Background()

	// A missing account is absence, not an error.
	acct, ok, err := client.Account(ctx, "alice")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if ok || acct != nil {
		t.Errorf("Account() of missing account ok = %v, want false", ok)
	}

	if err := ledger.NewAccount("alice"); err != nil {
		t.Fatal(err)
	}
	acct, ok, err = client.Account(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("Account() = ok %v, err %v; want true, nil", ok, err)
	}
	if balance, err := acct.Balance(ctx); err != nil || balance != 0 {
		t.Errorf("Balance() = %d, %v; want 0, nil", balance, err)
	}
}

func TestNewAndDeleteAccount(t *testing.T) {
	client, ledger := newBankFixture(t)
	ctx := context.Background()

	if err := client.NewAccount(ctx, "alice"); err != nil {
		t.Fatalf("NewAccount() error = %v", err)
	}
	if !ledger.Exists("alice") {
		t.Error("ledger missing account after NewAccount")
	}
	if err := client.NewAccount(ctx, "alice"); !errors.Is(err, bank.ErrAccountExists) {
		t.Errorf("duplicate NewAccount() error = %v, want AccountExists", err)
	}

	if err := client.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if err := client.DeleteAccount(ctx, "alice"); !errors.Is(err, bank.ErrNoSuchAccount) {
		t.Errorf("second DeleteAccount() error = %v, want NoSuchAccount", err)
	}
}

func TestTransfersRoundCents(t *testing.T) {
	client, ledger := newBankFixture(t)
	ctx := context.Background()

	if err := ledger.NewAccount("alice"); err != nil {
		t.Fatal(err)
	}
	acct, _, err := client.Account(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	if err := acct.Deposit(ctx, 5099); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if err := acct.Withdraw(ctx, 99); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}

	balance, err := acct.Balance(ctx)
	if err != nil || balance != 5000 {
		t.Errorf("Balance() = %d, %v; want 5000, nil", balance, err)
	}
	if got, _ := ledger.Balance("alice"); got != 5000 {
		t.Errorf("ledger balance = %d, want 5000", got)
	}
}

func TestOverdraftPassesThrough(t *testing.T) {
	client, ledger := newBankFixture(t)
	ctx := context.Background()

	if err := ledger.NewAccount("alice"); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Deposit("alice", 100); err != nil {
		t.Fatal(err)
	}

	acct, _, err := client.Account(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	// The coded error survives the wire round trip.
	err = acct.Withdraw(ctx, 200)
	if !errors.Is(err, bank.ErrOverdraft) {
		t.Errorf("Withdraw() error = %v, want Overdraft", err)
	}
	var bankErr *bank.Error
	if !errors.As(err, &bankErr) || bankErr.Message == "" {
		t.Errorf("reconstructed error lost its message: %v", err)
	}
}
