// Package registry implements the name service that maps human-readable
// service names ("Market", "Nordea", client names) to endpoint URLs.
// The market and the bank register themselves here at startup; clients
// resolve both before their first call. Bindings are in-memory only.
package registry
