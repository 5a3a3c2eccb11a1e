package notify

import (
	"fmt"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// SettlementMessage renders a resolved market.
func SettlementMessage(q string, d domain.SettlementDecision, res domain.WriteResult) (title, body string) {
	title = fmt.Sprintf("Market #%d settled %s", d.MarketID, domain.OutcomeLabel(d.Outcome))
	body = fmt.Sprintf("%s\nMethod: %s (%s)\nTx: %s", q, d.Method, d.Note, res.TxHash)
	return title, body
}

// DeferredMessage renders a market that could not be settled this cycle.
func DeferredMessage(m domain.Market, reason string) (title, body string) {
	return fmt.Sprintf("Market #%d deferred", m.ID), fmt.Sprintf("%s\n%s", m.Question, reason)
}

// ArbitrationMessage renders an AI-adjudicated dispute.
func ArbitrationMessage(d domain.Dispute, v domain.ArbitrationVerdict) (title, body string) {
	title = "Weather dispute arbitrated"
	body = fmt.Sprintf("%s @ %s\n%s: %s | %s: %s\nVerdict: %s",
		d.Question, d.Location,
		d.Primary.Source, d.Primary.Description,
		d.Secondary.Source, d.Secondary.Description,
		domain.OutcomeLabel(v.Raining))
	if v.FellBack {
		body += " (fallback: " + v.Reason + ")"
	}
	return title, body
}

// BetMessage renders a placed bet.
func BetMessage(t domain.TradeDecision, res domain.WriteResult) (title, body string) {
	title = fmt.Sprintf("Bet %s on market #%d", domain.OutcomeLabel(t.Side), t.MarketID)
	body = fmt.Sprintf("%s USDC\n%s\nTx: %s", domain.FormatUSDC(t.Amount), t.Justification, res.TxHash)
	return title, body
}

// WriteFailedMessage renders a reverted or failed transaction.
func WriteFailedMessage(action string, marketID uint64, res domain.WriteResult) (title, body string) {
	title = fmt.Sprintf("%s on market #%d %s", action, marketID, res.Status)
	body = res.ErrorMessage
	if res.TxHash != "" {
		body += "\nTx: " + res.TxHash
	}
	return title, body
}

// CycleErrorMessage renders a cycle that aborted.
func CycleErrorMessage(r domain.CycleReport) (title, body string) {
	return fmt.Sprintf("%s cycle failed", r.Workflow), r.Error
}
