package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/localoracle/internal/crypto"
	"github.com/alanyoungcy/localoracle/internal/domain"
)

var (
	marketAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	agentAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// mockBackend answers contract calls by 4-byte selector.
type mockBackend struct {
	mu        sync.Mutex
	responses map[string][]byte
	callErr   error
	blocks    []*big.Int

	sent          []*types.Transaction
	sendErr       error
	receiptStatus uint64

	// nonceFromSent makes the pending nonce track the number of sent txs,
	// like a node that has seen every earlier submission.
	nonceFromSent bool
}

func (m *mockBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, block)
	if m.callErr != nil {
		return nil, m.callErr
	}
	return m.responses[hexutil.Encode(msg.Data[:4])], nil
}

func (m *mockBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nonceFromSent {
		return uint64(len(m.sent)), nil
	}
	return 3, nil
}

func (m *mockBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *mockBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(2_000_000_000)}, nil
}

func (m *mockBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, tx)
	return nil
}

func (m *mockBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: hash, Status: m.receiptStatus, BlockNumber: big.NewInt(101)}, nil
}

func selector(parsed abi.ABI, method string) string {
	return hexutil.Encode(parsed.Methods[method].ID)
}

func pack(t *testing.T, parsed abi.ABI, method string, vals ...any) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(vals...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMarketCountEmptyContract(t *testing.T) {
	m := &mockBackend{responses: map[string][]byte{}}
	r := NewReader(m, marketAddr, agentAddr, discard())

	n, err := r.MarketCount(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("MarketCount = (%d, %v), want (0, nil)", n, err)
	}
	if m.blocks[0].Cmp(finalizedBlock) != 0 {
		t.Errorf("read at block %v, want finalized", m.blocks[0])
	}
}

func TestGetMarket(t *testing.T) {
	m := &mockBackend{responses: map[string][]byte{
		selector(marketABI, "nextMarketId"): pack(t, marketABI, "nextMarketId", big.NewInt(2)),
		selector(marketABI, "getMarket"): pack(t, marketABI, "getMarket", marketTuple{
			Id:            big.NewInt(1),
			Creator:       common.HexToAddress("0xabc"),
			Question:      "Will it rain in London today?",
			Lat:           big.NewInt(51_507_400),
			Lng:           big.NewInt(-127_800),
			EndTime:       big.NewInt(1_760_000_000),
			TotalYesStake: big.NewInt(30_000_000),
			TotalNoStake:  big.NewInt(70_000_000),
		}),
	}}
	r := NewReader(m, marketAddr, agentAddr, discard())

	n, err := r.MarketCount(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("MarketCount = (%d, %v)", n, err)
	}

	got, err := r.GetMarket(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if got.ID != 1 || got.Lng != -127_800 || got.EndTime != 1_760_000_000 || got.Resolved {
		t.Errorf("GetMarket = %+v", got)
	}
	if got.TotalStake().Int64() != 100_000_000 {
		t.Errorf("TotalStake = %v", got.TotalStake())
	}
}

func TestGetMarketEmpty(t *testing.T) {
	r := NewReader(&mockBackend{responses: map[string][]byte{}}, marketAddr, agentAddr, discard())
	if _, err := r.GetMarket(context.Background(), 9); !errors.Is(err, domain.ErrEmptyResponse) {
		t.Errorf("GetMarket err = %v, want ErrEmptyResponse", err)
	}
}

func TestAgentStatsAndPosition(t *testing.T) {
	m := &mockBackend{responses: map[string][]byte{
		selector(agentABI, "getStats"): pack(t, agentABI, "getStats",
			big.NewInt(1_000_000_000), big.NewInt(4), big.NewInt(2), big.NewInt(1), big.NewInt(-5_000_000), big.NewInt(1)),
		selector(agentABI, "marketToBetIndex"): pack(t, agentABI, "marketToBetIndex", big.NewInt(3)),
	}}
	r := NewReader(m, marketAddr, agentAddr, discard())

	s, err := r.AgentStats(context.Background())
	if err != nil {
		t.Fatalf("AgentStats: %v", err)
	}
	if s.Bankroll.Int64() != 1_000_000_000 || s.ActiveBets != 1 || s.TotalPnL.Int64() != -5_000_000 {
		t.Errorf("AgentStats = %+v", s)
	}

	has, err := r.HasPosition(context.Background(), 4)
	if err != nil || !has {
		t.Errorf("HasPosition = (%v, %v), want (true, nil)", has, err)
	}
}

func TestAgentStatsEmpty(t *testing.T) {
	r := NewReader(&mockBackend{responses: map[string][]byte{}}, marketAddr, agentAddr, discard())
	s, err := r.AgentStats(context.Background())
	if err != nil || s.Bankroll.Sign() != 0 || s.ActiveBets != 0 {
		t.Errorf("AgentStats = (%+v, %v), want zero snapshot", s, err)
	}
}

func newTestWriter(t *testing.T, m *mockBackend) *Writer {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	signer, err := crypto.NewSigner(key, 11155111)
	if err != nil {
		t.Fatal(err)
	}
	return NewWriter(m, signer, WriterConfig{
		MarketAddress:  marketAddr,
		AgentAddress:   agentAddr,
		GasLimit:       500_000,
		ReceiptTimeout: time.Second,
		PollInterval:   10 * time.Millisecond,
	}, discard())
}

func TestResolveMarketSuccess(t *testing.T) {
	m := &mockBackend{receiptStatus: types.ReceiptStatusSuccessful}
	w := newTestWriter(t, m)

	res := w.ResolveMarket(context.Background(), 7, true)
	if res.Status != domain.TxSuccess || res.TxHash == "" {
		t.Fatalf("ResolveMarket = %+v", res)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d txs, want 1", len(m.sent))
	}
	tx := m.sent[0]
	if *tx.To() != marketAddr || tx.Gas() != 500_000 || tx.Nonce() != 3 {
		t.Errorf("tx to=%s gas=%d nonce=%d", tx.To(), tx.Gas(), tx.Nonce())
	}

	args, err := marketABI.Methods["resolveMarket"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatal(err)
	}
	if args[0].(*big.Int).Int64() != 7 || args[1].(bool) != true {
		t.Errorf("resolveMarket args = %v", args)
	}
}

type revertError struct{ data string }

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	strType, _ := abi.NewType("string", "", nil)
	enc, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		t.Fatal(err)
	}
	return hexutil.Encode(append(ethcrypto.Keccak256([]byte("Error(string)"))[:4], enc...))
}

func TestResolveMarketReverted(t *testing.T) {
	m := &mockBackend{
		receiptStatus: types.ReceiptStatusFailed,
		callErr:       revertError{data: revertData(t, "Market already resolved")},
	}
	w := newTestWriter(t, m)

	res := w.ResolveMarket(context.Background(), 7, false)
	if res.Status != domain.TxReverted {
		t.Fatalf("Status = %s, want REVERTED", res.Status)
	}
	if res.ErrorMessage != "Market already resolved" {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}
}

func TestConcurrentWritesUseDistinctNonces(t *testing.T) {
	m := &mockBackend{receiptStatus: types.ReceiptStatusSuccessful, nonceFromSent: true}
	w := newTestWriter(t, m)

	const writers = 4
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				w.ResolveMarket(context.Background(), uint64(i), true)
				return
			}
			w.PlaceBet(context.Background(), domain.TradeDecision{MarketID: uint64(i), Side: true, Amount: big.NewInt(1)})
		}()
	}
	wg.Wait()

	if len(m.sent) != writers {
		t.Fatalf("sent %d txs, want %d", len(m.sent), writers)
	}
	seen := make(map[uint64]bool)
	for _, tx := range m.sent {
		if seen[tx.Nonce()] {
			t.Errorf("nonce %d signed twice", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
}

func TestPlaceBetSendFailure(t *testing.T) {
	m := &mockBackend{sendErr: errors.New("insufficient funds for gas")}
	w := newTestWriter(t, m)

	res := w.PlaceBet(context.Background(), domain.TradeDecision{
		MarketID:      2,
		Side:          true,
		Amount:        big.NewInt(15_000_000),
		Justification: "OWM: 60% | WeatherAPI: N/A | Combined: 60% vs market 30% → +30 pp edge",
	})
	if res.Status != domain.TxFailed || !strings.Contains(res.ErrorMessage, "insufficient funds") {
		t.Errorf("PlaceBet = %+v", res)
	}
}

func TestPlaceBetRejectsZeroAmount(t *testing.T) {
	m := &mockBackend{}
	res := newTestWriter(t, m).PlaceBet(context.Background(), domain.TradeDecision{MarketID: 1, Amount: big.NewInt(0)})
	if res.Status != domain.TxFailed || len(m.sent) != 0 {
		t.Errorf("PlaceBet = %+v, sent=%d", res, len(m.sent))
	}
}
