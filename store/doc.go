// Package store defines the document-store capability consumed by
// repositories, and a registry of named connections.
//
// A [Connection] exposes collections of documents keyed by string ids. Each
// backend package implements it:
//
//   - store/memory: in-process store, used as an emulator and in tests
//   - store/dynamo: Amazon DynamoDB, one table per collection
//   - store/mongo: MongoDB, one collection per collection
//
// # Queries
//
// [Query] values are immutable; Where, OrderBy and Limit return a new query.
// Predicates are conjunctive. A document that lacks a filtered field, or the
// ordering field, never matches. Without an ordering, results come back in
// document id order.
//
// # Batches
//
// A [WriteBatch] stages Set operations and applies all of them or none on
// Commit. Backends with a lower limit than the default 500 writes per batch
// implement [BatchLimiter].
//
// # Errors
//
//   - [ErrNotFound] - DocRef.Update on a missing document, or an unknown registry name
//   - [ErrAlreadyExists] - registry name already taken
//   - [ErrInvalidPredicate] - a predicate the backend cannot evaluate
//   - [ErrForeignRef] - a batch was given a DocRef from another connection
//   - [ErrBatchTooLarge] - a batch exceeds the backend's write limit
package store
