// Package aggregates defines domain-facing aggregate contracts.
//
// The marketplace aggregate spans two stores with no shared transaction: the
// account document and the canonical product/order tables. Contracts here
// describe the ordered write sequences and the typed outcomes callers receive,
// including partial failure after an earlier step committed.
package aggregates
