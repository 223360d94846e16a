package market

import "errors"

// ErrSlippageExceeded is returned by Pool implementations when a swap's
// spread, or a liquidity provision's ratio deviation, exceeds the caller's
// tolerance.
var ErrSlippageExceeded = errors.New("slippage tolerance exceeded")
