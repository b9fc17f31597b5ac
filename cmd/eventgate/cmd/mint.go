package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/jmcleod/eventgate/internal/secret"
	"github.com/jmcleod/eventgate/internal/uuid"
	"github.com/jmcleod/eventgate/storage"
	"github.com/jmcleod/eventgate/token"
)

var mintFlagKeys = map[string]string{
	"ttl":      "mint.ttl",
	"base-url": "mint.base_url",
	"ledger":   "ledger.path",
}

var (
	mintHours      float64
	mintQRPath     string
	mintQRSize     int
	mintLabel      string
	mintJSONOutput bool
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a signed link",
	Long: `Prints a link carrying a freshly signed token, valid for --ttl (default 1h).
Share it directly or as the QR code written by --qr.

Without a configured secret mint prints a random one you can use and exits
with status 1.`,
	Args: cobra.NoArgs,
	RunE: runMint,
}

func init() {
	rootCmd.AddCommand(mintCmd)
	mintCmd.Flags().Duration("ttl", 0, "How long the link stays valid (default 1h)")
	mintCmd.Flags().Float64Var(&mintHours, "hours", 0, "Validity in hours; alternative to --ttl")
	mintCmd.Flags().String("base-url", "", "Site URL the token is appended to")
	mintCmd.Flags().String("ledger", "", "Record the link in this ledger file")
	mintCmd.Flags().StringVar(&mintQRPath, "qr", "", "Also write the link as a QR code PNG to this path")
	mintCmd.Flags().IntVar(&mintQRSize, "qr-size", 256, "QR code size in pixels")
	mintCmd.Flags().StringVar(&mintLabel, "label", "", "Note stored with the link in the ledger")
	mintCmd.Flags().BoolVar(&mintJSONOutput, "json", false, "Output the link and its details as JSON")
	mintCmd.MarkFlagsMutuallyExclusive("ttl", "hours")
}

type mintResult struct {
	ID          string    `json:"id"`
	Link        string    `json:"link"`
	Fingerprint string    `json:"fingerprint"`
	Label       string    `json:"label,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	QRCode      string    `json:"qr_code,omitempty"`
}

func runMint(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("hours") {
		if mintHours <= 0 {
			return fmt.Errorf("--hours must be positive")
		}
		if err := cmd.Flags().Set("ttl", time.Duration(mintHours*float64(time.Hour)).String()); err != nil {
			return err
		}
	}
	cfg, err := loadConfig(cmd, mintFlagKeys)
	if err != nil {
		return err
	}

	key, err := cfg.LoadSecret()
	if err != nil {
		return err
	}
	defer key.Destroy()

	if key.Empty() {
		printSecretSuggestion(cmd.ErrOrStderr())
		return exitCode(1)
	}

	ledger, err := openLedger(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	res, err := mintLink(key.Bytes(), cfg.Mint.BaseURL, cfg.Gate.QueryParam, cfg.Mint.TTL, mintLabel, time.Now(), ledger)
	if err != nil {
		return err
	}

	if mintQRPath != "" {
		if err := qrcode.WriteFile(res.Link, qrcode.Medium, mintQRSize, mintQRPath); err != nil {
			return fmt.Errorf("failed to write QR code: %w", err)
		}
		res.QRCode = mintQRPath
	}

	if mintJSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Link)
	fmt.Fprintf(cmd.ErrOrStderr(), "Expires: %s (in %s)\n", res.ExpiresAt.Local().Format(time.RFC1123), cfg.Mint.TTL)
	if res.QRCode != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "QR code: %s\n", res.QRCode)
	}
	return nil
}

// mintLink signs a token valid for ttl from now, builds the link and
// records it in ledger.
func mintLink(key []byte, baseURL, param string, ttl time.Duration, label string, now time.Time, ledger storage.Ledger) (mintResult, error) {
	raw, claims, err := token.Mint(key, ttl, now)
	if err != nil {
		return mintResult{}, fmt.Errorf("failed to mint token: %w", err)
	}
	link, err := buildLink(baseURL, param, raw)
	if err != nil {
		return mintResult{}, err
	}

	issue := storage.Issue{
		ID:          uuid.New(),
		Label:       label,
		Fingerprint: token.Fingerprint(raw),
		IssuedAt:    now.UTC(),
		ExpiresAt:   claims.ExpiresAt().UTC(),
	}
	if err := ledger.Record(issue); err != nil {
		return mintResult{}, fmt.Errorf("failed to record link: %w", err)
	}

	return mintResult{
		ID:          issue.ID,
		Link:        link,
		Fingerprint: issue.Fingerprint,
		Label:       label,
		IssuedAt:    issue.IssuedAt,
		ExpiresAt:   issue.ExpiresAt,
	}, nil
}

// buildLink sets param to tok on baseURL, keeping any query it already has.
func buildLink(baseURL, param, tok string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	q := u.Query()
	q.Set(param, tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func printSecretSuggestion(w io.Writer) {
	fmt.Fprintln(w, "Error: no secret configured. Set EVENTGATE_SECRET (or EVENT_TOKEN_SECRET) on both")
	fmt.Fprintln(w, "the gate and this command, for example to this freshly generated value:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  EVENTGATE_SECRET=%s\n", secret.Suggest())
}
