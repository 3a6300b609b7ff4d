package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/kontext-systems/audit-core/pkg/config"
)

// runReasonCmd implements `kontext-audit reason`: looks up the
// sanctions reason for an address on a chain.
//
// Exit codes:
//
//	0 = address found in the sanctions index
//	1 = address not sanctioned
//	2 = usage error
func runReasonCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("reason", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var address, chainName string
	var jsonOutput bool
	cmd.StringVar(&address, "address", "", "Address to look up (REQUIRED)")
	cmd.StringVar(&chainName, "chain", "", "Chain name (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if address == "" || chainName == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --address and --chain are required")
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	reason, found := k.Reason(address, chainName)

	if jsonOutput {
		data, _ := json.MarshalIndent(struct {
			Found  bool `json:"found"`
			Reason any  `json:"reason,omitempty"`
		}{Found: found, Reason: reason}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if found {
		_, _ = fmt.Fprintf(stdout, "%ssanctioned%s: %s (lists: %v, source: %s)\n", ColorRed, ColorReset, reason.EntityName, reason.Lists, reason.SourceID)
	} else {
		_, _ = fmt.Fprintf(stdout, "%snot sanctioned%s\n", ColorGreen, ColorReset)
	}

	if !found {
		return 1
	}
	return 0
}
