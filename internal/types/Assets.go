/*

This file contains the asset types shared by the whole engine. An asset is
either a native chain coin (identified by denom) or a token-standard contract
(identified by contract address); identity is the (kind, identifier) pair.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// AssetKind discriminates the two supported asset representations.
type AssetKind string

const (
	AssetKindNative AssetKind = "NATIVE"
	AssetKindToken  AssetKind = "TOKEN"
)

// AssetInfo identifies an asset without an amount attached.
type AssetInfo struct {
	Kind       AssetKind `json:"kind"`       // NATIVE or TOKEN
	Identifier string    `json:"identifier"` // denom (uusd) or contract address
}

// Asset is an AssetInfo plus an amount.
type Asset struct {
	Info   AssetInfo   `json:"info"`
	Amount sdkmath.Int `json:"amount"`
}

// NewNativeAsset builds a native-coin asset.
func NewNativeAsset(denom string, amount sdkmath.Int) Asset {
	return Asset{Info: AssetInfo{Kind: AssetKindNative, Identifier: denom}, Amount: amount}
}

// NewTokenAsset builds a token-contract asset.
func NewTokenAsset(contract string, amount sdkmath.Int) Asset {
	return Asset{Info: AssetInfo{Kind: AssetKindToken, Identifier: contract}, Amount: amount}
}

// IsNative reports whether the asset is a native chain coin. Only native
// transfers of the secondary asset are subject to the network transfer tax.
func (i AssetInfo) IsNative() bool {
	return i.Kind == AssetKindNative
}

// Equal compares identity only, not amounts.
func (i AssetInfo) Equal(other AssetInfo) bool {
	return i.Kind == other.Kind && i.Identifier == other.Identifier
}

// WithAmount attaches an amount to an AssetInfo.
func (i AssetInfo) WithAmount(amount sdkmath.Int) Asset {
	return Asset{Info: i, Amount: amount}
}
