// Package market implements the marketplace coordination engine.
//
// The engine owns three pieces of state (the registered trader set, the
// offer map, and the wish map) behind a single mutex. All six operations
// (Register, Unregister, Sell, Buy, Wish, ListItems) serialize on that
// mutex, which is held across Bank calls so that the window between
// validation and mutation is indivisible: no double-sell, no double-spend.
//
// Callbacks are never sent while the mutex is held. Operations collect
// (trader, message) pairs inside the critical section and hand them to the
// Notifier after unlocking, so the slowest trader endpoint cannot stall the
// market. Wishes are removed before their match callbacks fire.
package market
