package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kontext-systems/audit-core/pkg/auditexport"
	"github.com/kontext-systems/audit-core/pkg/config"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// runAuditCmd implements `kontext-audit audit`: exports the full audit
// trail in json or csv format, optionally filtered by agent/session/type.
//
// Exit codes:
//
//	0 = export written
//	1 = export error
//	2 = usage error
func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var format, agentID, sessionID, eventType, out string
	cmd.StringVar(&format, "format", "json", "Export format: json|csv")
	cmd.StringVar(&agentID, "agent", "", "Filter by agent ID")
	cmd.StringVar(&sessionID, "session", "", "Filter by session ID")
	cmd.StringVar(&eventType, "type", "", "Filter by event type")
	cmd.StringVar(&out, "out", "", "Write the export to this file instead of stdout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var fmtName auditexport.Format
	switch format {
	case "json", "":
		fmtName = auditexport.FormatJSON
	case "csv":
		fmtName = auditexport.FormatCSV
	default:
		_, _ = fmt.Fprintf(stderr, "Error: unknown --format %q, want json or csv\n", format)
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := k.Export(fmtName, auditexport.Filters{
		AgentID:   agentID,
		SessionID: sessionID,
		Type:      kontextmodel.EventType(eventType),
	}, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
		return 1
	}

	var payload []byte
	switch fmtName {
	case auditexport.FormatCSV:
		payload = []byte(result.Data.(string))
	default:
		payload, err = json.MarshalIndent(result, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if out != "" {
		if err := writeFile(out, payload); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot write export: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%d records exported to %s\n", result.RecordCount, out)
		return 0
	}

	_, _ = fmt.Fprintln(stdout, string(payload))
	return 0
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
