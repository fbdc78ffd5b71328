// Package notify delivers callback messages to traders asynchronously.
//
// The engine enqueues (trader, message) pairs; a single worker drains the
// queue in FIFO order and hands each message to the delivery sink. One
// worker means delivery order matches enqueue order, which preserves the
// per-sell total-item-order guarantee for wish-match callbacks. Delivery
// failures are logged and swallowed; a dead trader endpoint never fails
// the market operation that produced the message.
package notify
