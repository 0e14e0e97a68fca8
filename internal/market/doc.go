// Package market implements the in-memory staking engine for binary-outcome
// donation markets.
//
// A Market accepts stakes on the "yes" or "no" side until its expiry, is
// resolved once by a majority-stake rule after expiry, and then computes each
// winner's proportional share of the losing pool. The engine only computes
// entitlements; moving funds is the job of the payment platform.
//
// The Registry owns every Market. Callers address markets by identifier and
// receive snapshots, never the Market itself. Each Market serialises its own
// state transitions with a mutex, so a stake that returns before a Resolve
// call starts is always counted in that resolution.
package market
