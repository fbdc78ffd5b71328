// Package model defines the value types shared across the marketplace services.
//
// Conventions:
//   - Money: int64 cents, never floats. Wire and CLI boundaries use decimal
//     strings ("30.00") converted via shopspring/decimal.
//   - Items are immutable values ordered by name, then price ascending.
//   - TraderRefs identify remote traders by client name only; the callback
//     endpoint behind a ref is resolved by the transport layer.
package model
