package services

import "errors"

var (
	// ErrUnsupportedMediaType is returned synchronously at ingest for MIME
	// types the pipeline cannot process. This is the only error class a
	// client ever sees at upload time.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	ErrAssetNotFound  = errors.New("asset not found")
	ErrPersonNotFound = errors.New("person not found")

	// ErrMergeSelf is returned when keep and merge refer to the same person.
	ErrMergeSelf = errors.New("cannot merge a person into itself")

	// ErrMergeIntoTombstone is returned when the merge target has itself
	// been merged away. Merges must always point at a live person so that
	// forwarding chains stay acyclic.
	ErrMergeIntoTombstone = errors.New("merge target is already merged into another person")

	// ErrClusteringBusy is returned when another clustering run or merge
	// holds the owner's clustering lock.
	ErrClusteringBusy = errors.New("clustering already in progress for owner")
)
