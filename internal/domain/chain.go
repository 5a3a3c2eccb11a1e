package domain

import "context"

// MarketReader reads prediction market state at the finalized block.
type MarketReader interface {
	MarketCount(ctx context.Context) (uint64, error)
	GetMarket(ctx context.Context, id uint64) (Market, error)
}

// AgentReader reads the trading agent's contract state.
type AgentReader interface {
	AgentStats(ctx context.Context) (AgentPortfolioSnapshot, error)
	HasPosition(ctx context.Context, marketID uint64) (bool, error)
}

// ChainWriter submits signed reports to the market and agent contracts.
type ChainWriter interface {
	ResolveMarket(ctx context.Context, marketID uint64, outcome bool) WriteResult
	PlaceBet(ctx context.Context, trade TradeDecision) WriteResult
}
