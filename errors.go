package vecstream

import (
	"errors"
	"fmt"

	"github.com/torinriley/vecstream/collection"
	"github.com/torinriley/vecstream/hnsw"
	"github.com/torinriley/vecstream/manager"
	"github.com/torinriley/vecstream/vectorstore"
)

// Public error kinds. Each wraps the originating package-local error so
// callers can use errors.Is/errors.As against either the public kind or the
// underlying cause.
var (
	// ErrDuplicateID is returned when adding a vector whose id already
	// exists in the collection.
	ErrDuplicateID = errors.New("vecstream: duplicate id")

	// ErrNotFound is returned when an id does not exist in the store.
	ErrNotFound = errors.New("vecstream: not found")

	// ErrEmptyVector is returned when a vector of length 0 is inserted.
	ErrEmptyVector = errors.New("vecstream: empty vector")

	// ErrInvalidParameter is returned for out-of-range or malformed
	// parameters (e.g. k <= 0 in a search).
	ErrInvalidParameter = errors.New("vecstream: invalid parameter")

	// ErrCollectionExists is returned by CreateCollection when the name is
	// already registered.
	ErrCollectionExists = errors.New("vecstream: collection exists")

	// ErrNoSuchCollection is returned when referencing an unregistered
	// collection name.
	ErrNoSuchCollection = errors.New("vecstream: no such collection")

	// ErrInvalidName is returned when a collection name fails the
	// [A-Za-z0-9_-]{1,64} pattern.
	ErrInvalidName = errors.New("vecstream: invalid collection name")

	// ErrCorruptStore is returned when persisted files fail validation on
	// load (bad magic, length mismatch, truncated data).
	ErrCorruptStore = errors.New("vecstream: corrupt store")

	// ErrIOError wraps filesystem failures encountered during save/load.
	ErrIOError = errors.New("vecstream: io error")

	// ErrIndexInconsistency marks an internal HNSW invariant violation. It
	// is fatal for the affected collection.
	ErrIndexInconsistency = errors.New("vecstream: index inconsistency")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
// The original underlying error, if any, is reachable via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vecstream: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError normalizes a package-local error into one of the public
// error kinds above. Unrecognized errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var vsDup *vectorstore.ErrDuplicateID
	if errors.As(err, &vsDup) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}
	var hDup *hnsw.ErrDuplicateID
	if errors.As(err, &hDup) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}
	if errors.Is(err, vectorstore.ErrNotFound) || errors.Is(err, hnsw.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, vectorstore.ErrEmptyVector) {
		return fmt.Errorf("%w: %w", ErrEmptyVector, err)
	}

	var vsDim *vectorstore.ErrDimensionMismatch
	if errors.As(err, &vsDim) {
		return &ErrDimensionMismatch{Expected: vsDim.Expected, Actual: vsDim.Actual, cause: err}
	}
	var hDim *hnsw.ErrDimensionMismatch
	if errors.As(err, &hDim) {
		return &ErrDimensionMismatch{Expected: hDim.Expected, Actual: hDim.Actual, cause: err}
	}

	if errors.Is(err, collection.ErrInvalidParameter) {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if errors.Is(err, collection.ErrCorruptStore) {
		return fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	if errors.Is(err, collection.ErrIOError) {
		return fmt.Errorf("%w: %w", ErrIOError, err)
	}
	if errors.Is(err, hnsw.ErrIndexInconsistency) {
		return fmt.Errorf("%w: %w", ErrIndexInconsistency, err)
	}

	if errors.Is(err, manager.ErrCollectionExists) {
		return fmt.Errorf("%w: %w", ErrCollectionExists, err)
	}
	if errors.Is(err, manager.ErrNoSuchCollection) {
		return fmt.Errorf("%w: %w", ErrNoSuchCollection, err)
	}
	if errors.Is(err, manager.ErrInvalidName) {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	return err
}
