package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// Reader implements domain.MarketReader and domain.AgentReader. All reads
// are made against the finalized block.
type Reader struct {
	caller Caller
	market common.Address
	agent  common.Address
	logger *slog.Logger
}

// NewReader creates a Reader for the given contract addresses. The agent
// address may be zero when only settlement is run.
func NewReader(caller Caller, market, agent common.Address, logger *slog.Logger) *Reader {
	return &Reader{
		caller: caller,
		market: market,
		agent:  agent,
		logger: logger.With(slog.String("component", "chain_reader")),
	}
}

// MarketCount returns nextMarketId; market ids run from 0 to count-1. A
// contract that returns no data (not deployed yet) counts as zero markets.
func (r *Reader) MarketCount(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, r.market, marketABI, "nextMarketId")
	if errors.Is(err, domain.ErrEmptyResponse) {
		r.logger.InfoContext(ctx, "market contract returned empty data, treating as zero markets",
			slog.String("address", r.market.Hex()),
		)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := uint256Arg(out, 0)
	if err != nil {
		return 0, fmt.Errorf("chain: nextMarketId: %w", err)
	}
	return n.Uint64(), nil
}

// GetMarket reads one market record. An empty response yields
// domain.ErrEmptyResponse.
func (r *Reader) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	out, err := r.call(ctx, r.market, marketABI, "getMarket", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Market{}, err
	}
	if len(out) != 1 {
		return domain.Market{}, fmt.Errorf("chain: getMarket: unexpected %d outputs", len(out))
	}
	t := *abi.ConvertType(out[0], new(marketTuple)).(*marketTuple)

	return domain.Market{
		ID:            t.Id.Uint64(),
		Creator:       t.Creator.Hex(),
		Question:      t.Question,
		Lat:           t.Lat.Int64(),
		Lng:           t.Lng.Int64(),
		EndTime:       t.EndTime.Int64(),
		Resolved:      t.Resolved,
		Outcome:       t.Outcome,
		TotalYesStake: t.TotalYesStake,
		TotalNoStake:  t.TotalNoStake,
	}, nil
}

// AgentStats reads the agent's portfolio. An agent contract with no data
// reads as an empty portfolio.
func (r *Reader) AgentStats(ctx context.Context) (domain.AgentPortfolioSnapshot, error) {
	out, err := r.call(ctx, r.agent, agentABI, "getStats")
	if errors.Is(err, domain.ErrEmptyResponse) {
		r.logger.InfoContext(ctx, "agent contract returned empty data, treating as empty portfolio",
			slog.String("address", r.agent.Hex()),
		)
		return domain.AgentPortfolioSnapshot{Bankroll: new(big.Int), TotalPnL: new(big.Int)}, nil
	}
	if err != nil {
		return domain.AgentPortfolioSnapshot{}, err
	}

	vals := make([]*big.Int, 6)
	for i := range vals {
		if vals[i], err = uint256Arg(out, i); err != nil {
			return domain.AgentPortfolioSnapshot{}, fmt.Errorf("chain: getStats: %w", err)
		}
	}
	return domain.AgentPortfolioSnapshot{
		Bankroll:   vals[0],
		TotalBets:  vals[1].Uint64(),
		Wins:       vals[2].Uint64(),
		Losses:     vals[3].Uint64(),
		TotalPnL:   vals[4],
		ActiveBets: vals[5].Uint64(),
	}, nil
}

// HasPosition reports whether the agent already holds a bet on the market.
func (r *Reader) HasPosition(ctx context.Context, marketID uint64) (bool, error) {
	out, err := r.call(ctx, r.agent, agentABI, "marketToBetIndex", new(big.Int).SetUint64(marketID))
	if errors.Is(err, domain.ErrEmptyResponse) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	idx, err := uint256Arg(out, 0)
	if err != nil {
		return false, fmt.Errorf("chain: marketToBetIndex: %w", err)
	}
	return idx.Sign() != 0, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, finalizedBlock)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("chain: call %s: %w", method, domain.ErrEmptyResponse)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

func uint256Arg(out []any, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is %T, want *big.Int", i, out[i])
	}
	return v, nil
}
