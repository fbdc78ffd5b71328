package bank

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/oskarlind/tradingpost/internal/model"
)

// Ledger holds the named accounts. All methods are safe for concurrent
// use; each is individually atomic.
type Ledger struct {
	logger *slog.Logger

	mu       sync.RWMutex
	balances map[string]int64
}

// NewLedger creates an empty ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		logger:   logger,
		balances: make(map[string]int64),
	}
}

// NewAccount opens an account with a zero balance.
func (l *Ledger) NewAccount(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[name]; ok {
		return NewError(CodeAccountExists, "account for %s already exists", name)
	}
	l.balances[name] = 0
	l.logger.Info("account opened", "account", name)
	return nil
}

// DeleteAccount closes an account, discarding any remaining balance.
func (l *Ledger) DeleteAccount(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[name]; !ok {
		return NewError(CodeNoSuchAccount, "no account for %s", name)
	}
	delete(l.balances, name)
	l.logger.Info("account closed", "account", name)
	return nil
}

// Exists reports whether an account is open under the given name.
func (l *Ledger) Exists(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.balances[name]
	return ok
}

// Deposit adds a non-negative amount in cents.
func (l *Ledger) Deposit(name string, cents int64) error {
	if cents < 0 {
		return NewError(CodeNegativeAmount, "cannot deposit negative amount %s", model.FormatAmount(cents))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[name]; !ok {
		return NewError(CodeNoSuchAccount, "no account for %s", name)
	}
	l.balances[name] += cents
	return nil
}

// Withdraw removes a non-negative amount in cents, rejecting overdrafts.
func (l *Ledger) Withdraw(name string, cents int64) error {
	if cents < 0 {
		return NewError(CodeNegativeAmount, "cannot withdraw negative amount %s", model.FormatAmount(cents))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[name]
	if !ok {
		return NewError(CodeNoSuchAccount, "no account for %s", name)
	}
	if balance < cents {
		return NewError(CodeOverdraft, "account %s has %s, cannot withdraw %s",
			name, model.FormatAmount(balance), model.FormatAmount(cents))
	}
	l.balances[name] = balance - cents
	return nil
}

// Balance returns the current balance in cents.
func (l *Ledger) Balance(name string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance, ok := l.balances[name]
	if !ok {
		return 0, NewError(CodeNoSuchAccount, "no account for %s", name)
	}
	return balance, nil
}

// Names returns all open account names, sorted.
func (l *Ledger) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.balances))
	for name := range l.balances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
