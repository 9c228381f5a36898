// Package vm implements a reference host heap for the snapshot engine.
//
// This package contains:
//   - NaN-boxed value representation with handle-based payloads
//   - Object layout with ordered property slots and interned type descriptors
//   - Per-kind internal state for functions, scopes, arrays, collections,
//     proxies and promises
//   - The ttd.Heap implementation used for extraction and inflation
//   - Intrinsics with well-known tokens, and a sample heap covering every kind
package vm
