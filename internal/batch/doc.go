// Package batch runs work over a list of items in fixed-size batches.
//
// Batches run with bounded concurrency and report progress after each one,
// which the fetch cache uses to warm many keys without opening an unbounded
// number of fetches at once. Processing stops at the first error.
package batch
