package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/kontext-systems/audit-core/pkg/anomaly"
	"github.com/kontext-systems/audit-core/pkg/approval"
	"github.com/kontext-systems/audit-core/pkg/config"
)

// runCheckCmd implements `kontext-audit check`: runs the Anomaly Engine
// then the Approval Engine against a proposed transaction.
//
// Exit codes:
//
//	0 = no approval request required
//	1 = approval required, or evaluation error
//	2 = usage error
func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		agentID, chainName, amount, token, from, to string
		trustScore                                  float64
		newDestination                              bool
		jsonOutput                                  bool
	)
	cmd.StringVar(&agentID, "agent", "", "Agent ID (REQUIRED)")
	cmd.StringVar(&chainName, "chain", "", "Chain name (REQUIRED)")
	cmd.StringVar(&amount, "amount", "", "Transfer amount (REQUIRED)")
	cmd.StringVar(&token, "token", "", "Token symbol")
	cmd.StringVar(&from, "from", "", "Sender address (REQUIRED)")
	cmd.StringVar(&to, "to", "", "Recipient address (REQUIRED)")
	cmd.Float64Var(&trustScore, "trust-score", 1, "Agent trust score")
	cmd.BoolVar(&newDestination, "new-destination", false, "Treat --to as a first-time destination")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if agentID == "" || chainName == "" || amount == "" || from == "" || to == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --agent, --chain, --amount, --from and --to are required")
		return 2
	}

	amountDec, err := decimal.NewFromString(amount)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --amount: %v\n", err)
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	anomalies, req, err := k.Check(
		anomaly.TransactionInput{
			AgentID: agentID,
			Chain:   chainName,
			Amount:  amount,
			Token:   token,
			From:    from,
			To:      to,
		},
		approval.Input{
			AgentID:          agentID,
			Amount:           amountDec,
			TrustScore:       trustScore,
			IsNewDestination: newDestination,
		},
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: check failed: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(struct {
			Anomalies interface{}       `json:"anomalies"`
			Approval  *approval.Request `json:"approval"`
		}{Anomalies: anomalies, Approval: req}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		if req != nil {
			return 1
		}
		return 0
	}

	if len(anomalies) == 0 {
		_, _ = fmt.Fprintf(stdout, "%sno anomalies detected%s\n", ColorGreen, ColorReset)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s%d anomal(y|ies) detected%s\n", ColorYellow, len(anomalies), ColorReset)
	}
	if req == nil {
		_, _ = fmt.Fprintln(stdout, "no approval required")
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "%sapproval required%s: %s (risk score %d, triggered by %v)\n", ColorRed, ColorReset, req.RequestID, req.RiskScore, req.TriggeredBy)
	return 1
}
