package domain

import "math/big"

// ConsensusMethod records how a settlement outcome was reached.
type ConsensusMethod string

const (
	MethodUnanimous     ConsensusMethod = "unanimous"
	MethodSingleSource  ConsensusMethod = "single-source"
	MethodAIAdjudicated ConsensusMethod = "ai-adjudicated"
)

// SettlementDecision is the outcome the oracle will write for a market.
type SettlementDecision struct {
	MarketID uint64
	Outcome  bool
	Method   ConsensusMethod
	// Source names the provider that decided a single-source settlement, or
	// "arbiter" / "arbiter-fallback" for adjudicated ones.
	Source string
	// Note is the human-readable explanation logged and persisted with the
	// decision.
	Note string
}

// TradeDecision is a bet the agent has decided to place.
type TradeDecision struct {
	MarketID      uint64
	Side          bool     // true = YES
	Amount        *big.Int // USDC, 6 decimals
	Justification string
	CombinedPct   int
	MarketYesPct  int
	Edge          int // percentage points, signed
}

// AgentPortfolioSnapshot is the agent contract's view of its own book, read
// once per trading cycle.
type AgentPortfolioSnapshot struct {
	Bankroll   *big.Int
	TotalBets  uint64
	Wins       uint64
	Losses     uint64
	TotalPnL   *big.Int
	ActiveBets uint64
}

// TxStatus is the terminal state of an on-chain write.
type TxStatus string

const (
	TxSuccess  TxStatus = "SUCCESS"
	TxReverted TxStatus = "REVERTED"
	TxFailed   TxStatus = "FAILED"
)

// WriteResult is returned by every chain write. It is never an error: callers
// log non-success statuses and move on.
type WriteResult struct {
	Status       TxStatus `json:"status"`
	TxHash       string   `json:"tx_hash,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
}
