package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/kontext-systems/audit-core/pkg/compliance"
	"github.com/kontext-systems/audit-core/pkg/config"
)

// runVerifyCmd implements `kontext-audit verify`.
//
// Exit codes:
//
//	0 = verified and compliant
//	1 = verified but non-compliant, or verification error
//	2 = usage error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		hash, chainName, amount, token, from, to, agentID, sessionID string
		jsonOutput                                                   bool
	)
	cmd.StringVar(&hash, "hash", "", "Transaction hash (REQUIRED)")
	cmd.StringVar(&chainName, "chain", "", "Chain name (REQUIRED)")
	cmd.StringVar(&amount, "amount", "", "Transfer amount (REQUIRED)")
	cmd.StringVar(&token, "token", "", "Token symbol (REQUIRED)")
	cmd.StringVar(&from, "from", "", "Sender address (REQUIRED)")
	cmd.StringVar(&to, "to", "", "Recipient address (REQUIRED)")
	cmd.StringVar(&agentID, "agent", "", "Agent ID (REQUIRED)")
	cmd.StringVar(&sessionID, "session", "", "Delegation session ID")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the verdict as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if hash == "" || chainName == "" || amount == "" || token == "" || from == "" || to == "" || agentID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --hash, --chain, --amount, --token, --from, --to and --agent are required")
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	verdict, err := k.Verify(compliance.Input{
		Hash:      hash,
		Chain:     chainName,
		Amount:    amount,
		Token:     token,
		From:      from,
		To:        to,
		AgentID:   agentID,
		SessionID: sessionID,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: verification failed: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(verdict, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if verdict.Compliant {
		_, _ = fmt.Fprintf(stdout, "%s✅ compliant%s (risk: %s)\n", ColorGreen, ColorReset, verdict.RiskLevel)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s❌ non-compliant%s (risk: %s)\n", ColorRed, ColorReset, verdict.RiskLevel)
		for _, c := range verdict.Checks {
			if !c.Passed {
				_, _ = fmt.Fprintf(stdout, "  - %s: %s\n", c.Name, c.Description)
			}
		}
	}

	if !verdict.Compliant {
		return 1
	}
	return 0
}
