package rerank

import "errors"

var errScoreCountMismatch = errors.New("rerank: scorer returned mismatched score count")
