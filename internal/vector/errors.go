package vector

import "errors"

// ErrRetrieval marks any failure of the similarity-search path: embedding
// generation, the RPC round trip, or decoding the result rows. Callers match
// it with errors.Is to distinguish retrieval failures from KB load failures.
var ErrRetrieval = errors.New("vector retrieval failed")
