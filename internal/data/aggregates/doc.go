// Package aggregates implements the marketplace coordinator on top of the
// table repos in internal/data/repos.
//
// Canonical products and orders and the account document are separate rows
// with no shared transaction. Every compound write is an ordered step
// sequence: canonical first and account second, inverted for deletions. A
// failure after the first committed step surfaces as *PartialFailure and the
// consistency checker reconciles what is left behind.
package aggregates
