package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/kontext-systems/audit-core/pkg/auditexport"
	"github.com/kontext-systems/audit-core/pkg/config"
)

// runCertCmd implements `kontext-audit cert`: issues a compliance
// certificate for an agent from its current event-store history.
//
// Exit codes:
//
//	0 = certificate issued
//	1 = certification error
//	2 = usage error
func runCertCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("cert", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var agentID, out string
	cmd.StringVar(&agentID, "agent", "", "Agent ID (REQUIRED)")
	cmd.StringVar(&out, "out", "", "Write the certificate JSON to this file instead of stdout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if agentID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --agent is required")
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cert, err := k.Certify(agentID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: certification failed: %v\n", err)
		return 1
	}

	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if out != "" {
		if err := writeFile(out, data); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot write certificate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "Certificate written to %s\n", out)
	} else {
		_, _ = fmt.Fprintln(stdout, string(data))
	}

	if cert.Status == auditexport.StatusNonCompliant {
		return 1
	}
	return 0
}
