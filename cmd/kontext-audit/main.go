// Command kontext-audit is the CLI surface over the audit core: a thin
// 1:1 mapping of the Kernel's governed operations, grounded on the
// teacher's cmd/helm dispatcher (Run(args, stdout, stderr) int, ANSI
// help formatting, per-subcommand flag.FlagSet).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kontext-systems/audit-core/pkg/config"
	"github.com/kontext-systems/audit-core/pkg/kontextkernel"
	"github.com/kontext-systems/audit-core/pkg/storageadapter"
	"github.com/kontext-systems/audit-core/pkg/storageadapter/fileadapter"
	"github.com/kontext-systems/audit-core/pkg/storageadapter/redisadapter"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	case "reason":
		return runReasonCmd(args[2:], stdout, stderr)
	case "cert":
		return runCertCmd(args[2:], stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "sync":
		return runSyncCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%skontext-audit%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintf(w, "%sCompliance audit trail for autonomous agents moving value on public ledgers.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  kontext-audit <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "COMPLIANCE")
	printCommand(w, "verify", "Verify a proposed transaction against compliance rules")
	printCommand(w, "check", "Run anomaly detection then approval routing")
	printCommand(w, "reason", "Look up the sanctions reason for an address")

	printSection(w, "AUDIT")
	printCommand(w, "cert", "Issue a compliance certificate for an agent")
	printCommand(w, "audit", "Export the audit trail (json|csv)")

	printSection(w, "STORAGE")
	printCommand(w, "sync", "Flush or restore the event store (--restore)")

	printSection(w, "UTILITIES")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-8s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// buildKernel wires a Kernel from environment configuration and the
// named compliance profile, shared by every subcommand.
func buildKernel(cfg *config.Config) (*kontextkernel.Kernel, error) {
	profile, err := config.LoadComplianceProfile(cfg.ProfilesDir, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", cfg.Profile, err)
	}
	resolved, err := config.Resolve(profile)
	if err != nil {
		return nil, fmt.Errorf("resolving profile %q: %w", cfg.Profile, err)
	}

	adapter, err := buildStorageAdapter(cfg)
	if err != nil {
		return nil, err
	}

	return kontextkernel.New(time.Now(), kontextkernel.Config{
		StorageAdapter: adapter,
		Compliance:     resolved.Compliance,
		Anomaly:        resolved.Anomaly,
		ApprovalTTL:    resolved.ApprovalTTL,
		Policies:       resolved.Policies,
	})
}

func buildStorageAdapter(cfg *config.Config) (storageadapter.Adapter, error) {
	switch cfg.StorageBackend {
	case "file":
		dir, err := filepath.Abs(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return fileadapter.New(dir)
	case "redis":
		return redisadapter.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
