package aggregates

// WriteTxOwnership defines who owns write transaction boundaries.
type WriteTxOwnership string

const (
	// WriteTxOwnedByRepository means Save opens and commits the transaction that
	// covers the snapshot and every buffered event.
	WriteTxOwnedByRepository WriteTxOwnership = "repository_owned"
)

// ReadPolicy defines how aggregate contracts should expose reads.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped allows only reads needed for invariant decisions in write flows.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicySnapshotAndLog exposes the current snapshot plus the append-only event log.
	ReadPolicySnapshotAndLog ReadPolicy = "snapshot_and_event_log"
)

// Contract describes aggregate-level policy expectations.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

// Aggregate is the common marker for aggregate persistence contracts.
type Aggregate interface {
	Contract() Contract
}

// RequiresRepositoryOwnedTx reports whether writes must happen inside one repository transaction.
func (c Contract) RequiresRepositoryOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByRepository
}

var MarketingImageAggregateContract = Contract{
	Name:             "marketing_image",
	WriteTxOwnership: WriteTxOwnedByRepository,
	ReadPolicy:       ReadPolicySnapshotAndLog,
	Notes:            "snapshot and buffered events commit together; a removed event deletes the snapshot but stays in the log",
}
