/*

This file contains the strategy parameterization. Defaults match the reference
deployment (ANC-UST pair on a Terra-style chain); every value can be
overridden through the environment so one binary serves any pair.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// DefaultStrategyParams provides a baseline parameter set. Used in sim mode
// and as documentation of the expected magnitudes.
func DefaultStrategyParams() types.StrategyParams {
	return types.StrategyParams{
		PrimaryAsset:   types.AssetInfo{Kind: types.AssetKindToken, Identifier: "anc"},
		SecondaryAsset: types.AssetInfo{Kind: types.AssetKindNative, Identifier: "uusd"},

		LendingProtocol: "lending",
		Pool:            "pool",
		PoolShareToken:  "ulp",
		StakingAdapter:  "staking",
		Oracle:          "oracle",
		Treasury:        "treasury",
		Governance:      "governance",

		// A position may lever up to 4:1 before the pipeline rejects it.
		MaxLTV: sdkmath.LegacyNewDecWithPrec(75, 2),
		// 20% of harvested rewards go to the treasury.
		FeeRate: sdkmath.LegacyNewDecWithPrec(20, 2),
		// 5% of post-liquidation leftovers go to the liquidator.
		BonusRate: sdkmath.LegacyNewDecWithPrec(5, 2),

		// Terra-style stability tax on native stable transfers: 0.1%, capped.
		TaxRate: sdkmath.LegacyNewDecWithPrec(1, 3),
		TaxCap:  sdkmath.NewInt(1_412_510),

		// The AMM pair's swap commission.
		SwapCommission: sdkmath.LegacyNewDecWithPrec(3, 3),
	}
}

// LoadStrategyParams builds the strategy parameter set from environment
// variables. All variables are required; use DefaultStrategyParams for local
// runs instead.
func LoadStrategyParams() (types.StrategyParams, error) {
	params := types.StrategyParams{}

	var err error
	load := func(target *string, key string) {
		if err != nil {
			return
		}
		*target, err = getEnv(key)
	}
	loadDec := func(target *sdkmath.LegacyDec, key string) {
		if err != nil {
			return
		}
		*target, err = getEnvAsDec(key)
	}

	var primaryKind, secondaryKind string
	load(&primaryKind, "FIELDS_PRIMARY_KIND")
	load(&params.PrimaryAsset.Identifier, "FIELDS_PRIMARY_ID")
	load(&secondaryKind, "FIELDS_SECONDARY_KIND")
	load(&params.SecondaryAsset.Identifier, "FIELDS_SECONDARY_ID")

	load(&params.LendingProtocol, "FIELDS_LENDING_ADDR")
	load(&params.Pool, "FIELDS_POOL_ADDR")
	load(&params.PoolShareToken, "FIELDS_POOL_SHARE_TOKEN")
	load(&params.StakingAdapter, "FIELDS_STAKING_ADDR")
	load(&params.Oracle, "FIELDS_ORACLE_ADDR")
	load(&params.Treasury, "FIELDS_TREASURY_ADDR")
	load(&params.Governance, "FIELDS_GOVERNANCE_ADDR")

	loadDec(&params.MaxLTV, "FIELDS_MAX_LTV")
	loadDec(&params.FeeRate, "FIELDS_FEE_RATE")
	loadDec(&params.BonusRate, "FIELDS_BONUS_RATE")
	loadDec(&params.TaxRate, "FIELDS_TAX_RATE")
	loadDec(&params.SwapCommission, "FIELDS_SWAP_COMMISSION")
	if err == nil {
		params.TaxCap, err = getEnvAsInt("FIELDS_TAX_CAP")
	}
	if err != nil {
		return types.StrategyParams{}, err
	}

	params.PrimaryAsset.Kind = types.AssetKind(primaryKind)
	params.SecondaryAsset.Kind = types.AssetKind(secondaryKind)

	if err := params.Validate(); err != nil {
		return types.StrategyParams{}, err
	}
	return params, nil
}
