package projector

// MaxBlockNum is the open-ended sentinel a row's end_block_num carries
// while it is the current projection of its natural key ("+∞" in the
// [start_block_num, end_block_num) interval notation this package uses).
const MaxBlockNum uint64 = ^uint64(0)

// forkOutcome is the pure fork-resolution decision, separated from its
// database side effects so it can be unit tested without a live
// connection.
type forkOutcome int

const (
	// blockIsNew means no block exists yet at this height; insert it.
	blockIsNew forkOutcome = iota
	// blockIsDuplicate means the same block_id is already recorded at
	// this height; the event is a no-op.
	blockIsDuplicate
	// blockIsFork means a different block_id occupies this height;
	// every open row at this height must be retired before the new
	// block and its rows are inserted.
	blockIsFork
)

// resolveFork decides what to do about a commit event's block, given
// whether a block already exists at its height and, if so, its id.
func resolveFork(existingBlockID string, exists bool, newBlockID string) forkOutcome {
	if !exists {
		return blockIsNew
	}
	if existingBlockID == newBlockID {
		return blockIsDuplicate
	}
	return blockIsFork
}
