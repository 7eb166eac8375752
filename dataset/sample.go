package dataset

import "fmt"

// Sample is an immutable pair of a raw-content handle and a label. The handle
// is a reference to backing storage (typically a file path) which is resolved
// lazily by the preprocessing pipeline, never by the source itself.
type Sample struct {
	Path  string
	Label int32
}

func (s Sample) String() string {
	return fmt.Sprintf("Sample(path=%s, label=%d)", s.Path, s.Label)
}
