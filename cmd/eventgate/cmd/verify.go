package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/eventgate/storage"
	"github.com/jmcleod/eventgate/token"
)

// ---------------------------------------------------------------------------
// Verification result types
// ---------------------------------------------------------------------------

type verifyResult struct {
	Fingerprint string         `json:"fingerprint"`
	Valid       bool           `json:"valid"`
	Reason      token.Reason   `json:"reason"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Remaining   string         `json:"remaining,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
	Checks      []checkResult  `json:"checks"`
	Issue       *storage.Issue `json:"issue,omitempty"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "skip"
	Detail string `json:"detail,omitempty"`
}

// verifyChecks lists the checks in the order token.Inspect runs them and
// the reason that marks each one failed.
var verifyChecks = []struct {
	name    string
	reasons []token.Reason
	detail  string
}{
	{"length", []token.Reason{token.ReasonTooLong}, fmt.Sprintf("longer than %d bytes", token.MaxLength)},
	{"format", []token.Reason{token.ReasonMalformed, token.ReasonEncoding}, "not two base64url segments"},
	{"secret", []token.Reason{token.ReasonNoSecret}, "no secret configured; signature cannot be checked"},
	{"signature", []token.Reason{token.ReasonSignature}, "signature does not match the configured secret"},
	{"claims", []token.Reason{token.ReasonClaims}, "payload is not an object with a numeric exp"},
	{"expiry", []token.Reason{token.ReasonExpired}, "expired"},
}

// ---------------------------------------------------------------------------
// Core verification logic
// ---------------------------------------------------------------------------

func verifyToken(raw string, key []byte, now time.Time) verifyResult {
	claims, reason := token.Inspect(raw, key, now)
	result := verifyResult{
		Fingerprint: token.Fingerprint(raw),
		Valid:       reason == token.ReasonOK,
		Reason:      reason,
	}

	failed := false
	for _, c := range verifyChecks {
		switch {
		case failed:
			result.Checks = append(result.Checks, checkResult{Name: c.name, Status: "skip"})
		case slices.Contains(c.reasons, reason):
			failed = true
			result.Checks = append(result.Checks, checkResult{Name: c.name, Status: "fail", Detail: c.detail})
		default:
			result.Checks = append(result.Checks, checkResult{Name: c.name, Status: "pass"})
		}
	}

	// Expired and unverifiable tokens still carry readable claims.
	if !result.Valid {
		peeked, err := token.Peek(raw)
		if err != nil {
			return result
		}
		claims = peeked
	}
	exp := claims.ExpiresAt().UTC()
	result.ExpiresAt = &exp
	if rem := claims.Remaining(now); rem > 0 {
		result.Remaining = rem.Round(time.Second).String()
	}
	if len(claims.Extra) > 0 {
		result.Claims = claims.Extra
	}
	return result
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func printHumanResult(w io.Writer, result verifyResult) {
	fmt.Fprintf(w, "Token fingerprint: %s\n", result.Fingerprint)
	if result.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:           %s\n", result.ExpiresAt.Format(time.RFC3339))
	}
	if result.Remaining != "" {
		fmt.Fprintf(w, "Remaining:         %s\n", result.Remaining)
	}
	if result.Issue != nil {
		label := result.Issue.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "Ledger entry:      %s (%s)\n", result.Issue.ID, label)
	}
	fmt.Fprintln(w)

	for _, c := range result.Checks {
		tag := "[PASS]"
		switch c.Status {
		case "fail":
			tag = "[FAIL]"
		case "skip":
			tag = "[SKIP]"
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", tag, c.Name)
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "Result: VALID")
	} else {
		fmt.Fprintf(w, "Result: INVALID (%s)\n", result.Reason)
	}
}

func printJSONResult(w io.Writer, result verifyResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ---------------------------------------------------------------------------
// Cobra command
// ---------------------------------------------------------------------------

var verifyJSONOutput bool

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Check a token against the configured secret",
	Long: `Runs the gate's token checks offline and reports each one, plus the
matching ledger entry when --ledger is given.

Exit status is 0 for a valid token, 1 for an invalid one and 2 when the
check could not run.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyJSONOutput, "json", false, "Output results as JSON")
	verifyCmd.Flags().String("ledger", "", "Look the token up in this ledger file")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"ledger": "ledger.path"})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(2)
	}
	key, err := cfg.LoadSecret()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(2)
	}
	defer key.Destroy()

	result := verifyToken(args[0], key.Bytes(), time.Now())

	if cfg.Ledger.Path != "" {
		ledger, err := openLedger(cfg.Ledger.Path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: cannot open ledger: %v\n", err)
			return exitCode(2)
		}
		defer ledger.Close()
		issue, err := storage.FindByFingerprint(ledger, result.Fingerprint)
		switch {
		case err == nil:
			result.Issue = &issue
		case !errors.Is(err, storage.ErrNotFound):
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: reading ledger: %v\n", err)
			return exitCode(2)
		}
	}

	if verifyJSONOutput {
		if err := printJSONResult(cmd.OutOrStdout(), result); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return exitCode(2)
		}
	} else {
		printHumanResult(cmd.OutOrStdout(), result)
	}

	if !result.Valid {
		return exitCode(1)
	}
	return nil
}
