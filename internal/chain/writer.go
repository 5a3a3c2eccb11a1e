package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/localoracle/internal/crypto"
	"github.com/alanyoungcy/localoracle/internal/domain"
)

// Report is an encoded contract call ready to be signed and submitted.
type Report struct {
	Receiver common.Address
	Method   string
	CallData []byte
	GasLimit uint64
}

// WriterConfig holds the writer's contract addresses and gas settings.
type WriterConfig struct {
	MarketAddress  common.Address
	AgentAddress   common.Address
	GasLimit       uint64
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Writer implements domain.ChainWriter. Writes are attempted once; the
// outcome is reported as a domain.WriteResult and never retried. Writes from
// concurrent callers run one at a time, each resolved before the next reads
// its nonce.
type Writer struct {
	mu      sync.Mutex
	backend Backend
	signer  *crypto.Signer
	cfg     WriterConfig
	logger  *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(backend Backend, signer *crypto.Signer, cfg WriterConfig, logger *slog.Logger) *Writer {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Writer{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "chain_writer")),
	}
}

// ResolveMarket submits resolveMarket(marketID, outcome) to the market
// contract.
func (w *Writer) ResolveMarket(ctx context.Context, marketID uint64, outcome bool) domain.WriteResult {
	data, err := marketABI.Pack("resolveMarket", new(big.Int).SetUint64(marketID), outcome)
	if err != nil {
		return failed(fmt.Errorf("chain: pack resolveMarket: %w", err))
	}
	return w.WriteReport(ctx, Report{
		Receiver: w.cfg.MarketAddress,
		Method:   "resolveMarket",
		CallData: data,
		GasLimit: w.cfg.GasLimit,
	})
}

// PlaceBet submits placeBet to the agent contract with the decision's
// justification as the on-chain reasoning.
func (w *Writer) PlaceBet(ctx context.Context, trade domain.TradeDecision) domain.WriteResult {
	if trade.Amount == nil || trade.Amount.Sign() <= 0 {
		return failed(errors.New("chain: placeBet: amount must be positive"))
	}
	data, err := agentABI.Pack("placeBet",
		new(big.Int).SetUint64(trade.MarketID),
		trade.Side,
		trade.Amount,
		trade.Justification,
	)
	if err != nil {
		return failed(fmt.Errorf("chain: pack placeBet: %w", err))
	}
	return w.WriteReport(ctx, Report{
		Receiver: w.cfg.AgentAddress,
		Method:   "placeBet",
		CallData: data,
		GasLimit: w.cfg.GasLimit,
	})
}

// WriteReport signs and submits a report and waits for its receipt.
func (w *Writer) WriteReport(ctx context.Context, r Report) domain.WriteResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.signer.Address()

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return failed(fmt.Errorf("chain: nonce: %w", err))
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return failed(fmt.Errorf("chain: gas tip: %w", err))
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return failed(fmt.Errorf("chain: head: %w", err))
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := r.Receiver
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       r.GasLimit,
		To:        &to,
		Data:      r.CallData,
	})
	signed, err := w.signer.SignTx(tx)
	if err != nil {
		return failed(err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return failed(fmt.Errorf("chain: send %s: %w", r.Method, err))
	}
	hash := signed.Hash()
	w.logger.InfoContext(ctx, "report submitted",
		slog.String("method", r.Method),
		slog.String("tx_hash", hash.Hex()),
		slog.Uint64("nonce", nonce),
	)

	receipt, err := w.waitMined(ctx, hash)
	if err != nil {
		res := failed(fmt.Errorf("chain: wait %s: %w", r.Method, err))
		res.TxHash = hash.Hex()
		return res
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return domain.WriteResult{Status: domain.TxSuccess, TxHash: hash.Hex()}
	}
	return domain.WriteResult{
		Status:       domain.TxReverted,
		TxHash:       hash.Hex(),
		ErrorMessage: w.revertReason(ctx, from, r, receipt.BlockNumber),
	}
}

func (w *Writer) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			w.logger.DebugContext(ctx, "receipt lookup failed",
				slog.String("tx_hash", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// revertReason replays the call against the state before the inclusion
// block and decodes the Error(string) payload when the node returns one.
func (w *Writer) revertReason(ctx context.Context, from common.Address, r Report, block *big.Int) string {
	var at *big.Int
	if block != nil && block.Sign() > 0 {
		at = new(big.Int).Sub(block, big.NewInt(1))
	}
	to := r.Receiver
	_, err := w.backend.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Gas:  r.GasLimit,
		Data: r.CallData,
	}, at)
	if err == nil {
		return "execution reverted"
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if hexData, ok := de.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(hexData)); uerr == nil {
				return reason
			}
		}
	}
	return err.Error()
}

func failed(err error) domain.WriteResult {
	return domain.WriteResult{Status: domain.TxFailed, ErrorMessage: err.Error()}
}
