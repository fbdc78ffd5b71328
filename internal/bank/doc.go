// Package bank implements the named-account ledger behind the bank
// service. Operations are synchronous and individually atomic; the
// ledger is the authority on funds. Balances are int64 cents.
package bank
