// Package aggregates holds the gorm-backed persistence for the marketing
// image aggregate.
//
// The repository owns the write transaction: the snapshot row and every
// buffered domain event commit together, guarded by the snapshot version.
// The domain event table doubles as the publication outbox swept by the
// redelivery worker.
package aggregates
