package index

import "errors"

// ErrDuplicateSourceID is returned when two providers discover the same
// source id in one cycle. It is a programming error, not a transient
// fault: the cycle fails without touching the previously persisted state.
var ErrDuplicateSourceID = errors.New("index: duplicate source_id discovered by more than one provider")
