package resolver

import "errors"

// ErrIndexMapping means an appearance match index fell outside the candidate list it was
// computed over. Valid inputs never produce it.
var ErrIndexMapping = errors.New("appearance match index does not map to a candidate")
