// Package keys derives deterministic cache keys from lookup parameters.
//
// A key is the SHA-256 of a canonical encoding of the parameters:
//   - parameter names are sorted, so map iteration order never matters
//   - every value carries a type tag, so 1 and "1" produce different keys
//   - only primitive values are accepted (strings, booleans, numbers, nil)
//
// Keys are opaque to the stores. Canonical returns the clear-text form for
// diagnostics.
package keys
