package market

// StrategyAddress identifies the strategy itself toward its collaborators
// (as borrower at the lending protocol and as staker at the staking adapter).
const StrategyAddress = "strategy"
