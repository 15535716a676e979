package purge

import "github.com/MaVeN-13TTN/meteostore-s3/internal/storage"

// Batches splits refs into contiguous chunks of at most size entries,
// preserving order. Chunks share the backing array of refs.
func Batches(refs []storage.ObjectRef, size int) [][]storage.ObjectRef {
	if size <= 0 || size > storage.MaxDeleteBatch {
		size = storage.MaxDeleteBatch
	}
	if len(refs) == 0 {
		return nil
	}

	batches := make([][]storage.ObjectRef, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		batches = append(batches, refs[start:end:end])
	}
	return batches
}
