package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const predictionMarketABIJSON = `[
  {"type":"function","name":"nextMarketId","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMarket","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"creator","type":"address"},
     {"name":"question","type":"string"},
     {"name":"lat","type":"int256"},
     {"name":"lng","type":"int256"},
     {"name":"endTime","type":"uint256"},
     {"name":"resolved","type":"bool"},
     {"name":"outcome","type":"bool"},
     {"name":"totalYesStake","type":"uint256"},
     {"name":"totalNoStake","type":"uint256"}]}]},
  {"type":"function","name":"resolveMarket","stateMutability":"nonpayable",
   "inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"bool"}],
   "outputs":[]}
]`

const marketAgentABIJSON = `[
  {"type":"function","name":"getStats","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"bankroll","type":"uint256"},
     {"name":"_totalBets","type":"uint256"},
     {"name":"_wins","type":"uint256"},
     {"name":"_losses","type":"uint256"},
     {"name":"_totalPnL","type":"int256"},
     {"name":"_activeBets","type":"uint256"}]},
  {"type":"function","name":"marketToBetIndex","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"placeBet","stateMutability":"nonpayable",
   "inputs":[
     {"name":"marketId","type":"uint256"},
     {"name":"outcome","type":"bool"},
     {"name":"amount","type":"uint256"},
     {"name":"reasoning","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	marketABI = mustParseABI(predictionMarketABIJSON)
	agentABI  = mustParseABI(marketAgentABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}

// marketTuple mirrors the getMarket return struct. Field names must match
// the ABI component names in camel case.
type marketTuple struct {
	Id            *big.Int
	Creator       common.Address
	Question      string
	Lat           *big.Int
	Lng           *big.Int
	EndTime       *big.Int
	Resolved      bool
	Outcome       bool
	TotalYesStake *big.Int
	TotalNoStake  *big.Int
}
