// Package service orchestrates the core components of the
// matching engine — orderbook, journal, metrics, and memory.
//
// It provides a clean API for placing, cancelling, and
// querying orders, decoupled from network transports.
package service
