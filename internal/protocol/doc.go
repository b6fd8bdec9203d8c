// Package protocol owns the shared-value store wire contract.
//
// Ownership boundary:
// - request/response messages carried in frame/ frames
// - tlv/ encoding of store values, including cell references
// - per-message required field validation
package protocol
