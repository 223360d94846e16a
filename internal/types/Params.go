/*

This file contains the strategy parameter set. Parameters are fixed at
instantiation; there is no runtime parameter mutation path.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// StrategyParams holds the immutable configuration of one strategy instance:
// the asset pair, collaborator addresses and the risk/fee parameterization.
type StrategyParams struct {
	// Asset pair. The primary asset is the volatile farmed asset; the
	// secondary asset is the stable borrowed asset, assumed unit-priced.
	PrimaryAsset   AssetInfo `json:"primary_asset"`
	SecondaryAsset AssetInfo `json:"secondary_asset"`

	// Collaborator addresses, used for event attribution and the audit store.
	LendingProtocol string `json:"lending_protocol"`
	Pool            string `json:"pool"`
	PoolShareToken  string `json:"pool_share_token"`
	StakingAdapter  string `json:"staking_adapter"`
	Oracle          string `json:"oracle"`
	Treasury        string `json:"treasury"`
	Governance      string `json:"governance"`

	// MaxLTV is the debt-value over bond-value ceiling enforced after every
	// user-initiated mutation.
	MaxLTV sdkmath.LegacyDec `json:"max_ltv"`
	// FeeRate is the fraction of harvested rewards skimmed to the treasury.
	FeeRate sdkmath.LegacyDec `json:"fee_rate"`
	// BonusRate is the fraction of post-liquidation leftovers paid to the
	// liquidator.
	BonusRate sdkmath.LegacyDec `json:"bonus_rate"`

	// Transfer-tax parameterization for the native secondary asset. A zero
	// TaxRate makes the tax helper a no-op for chains without a transfer tax.
	TaxRate sdkmath.LegacyDec `json:"tax_rate"`
	TaxCap  sdkmath.Int       `json:"tax_cap"`

	// SwapCommission is the AMM pool's proportional swap fee.
	SwapCommission sdkmath.LegacyDec `json:"swap_commission"`
}

// Validate checks internal consistency of the parameter set.
func (p StrategyParams) Validate() error {
	switch {
	case p.PrimaryAsset.Identifier == "":
		return errEmpty("primary asset identifier")
	case p.SecondaryAsset.Identifier == "":
		return errEmpty("secondary asset identifier")
	case p.PrimaryAsset.Equal(p.SecondaryAsset):
		return errEmpty("distinct asset pair")
	case p.MaxLTV.IsNil() || !p.MaxLTV.IsPositive() || p.MaxLTV.GTE(sdkmath.LegacyOneDec()):
		return errRange("max_ltv", "(0, 1)")
	case p.FeeRate.IsNil() || p.FeeRate.IsNegative() || p.FeeRate.GTE(sdkmath.LegacyOneDec()):
		return errRange("fee_rate", "[0, 1)")
	case p.BonusRate.IsNil() || p.BonusRate.IsNegative() || p.BonusRate.GTE(sdkmath.LegacyOneDec()):
		return errRange("bonus_rate", "[0, 1)")
	case p.TaxRate.IsNil() || p.TaxRate.IsNegative():
		return errRange("tax_rate", "[0, inf)")
	case p.SwapCommission.IsNil() || p.SwapCommission.IsNegative() || p.SwapCommission.GTE(sdkmath.LegacyOneDec()):
		return errRange("swap_commission", "[0, 1)")
	}
	return nil
}

type paramError struct{ msg string }

func (e paramError) Error() string { return e.msg }

func errEmpty(field string) error {
	return paramError{msg: "strategy params: " + field + " is required"}
}

func errRange(field, r string) error {
	return paramError{msg: "strategy params: " + field + " must be in " + r}
}
