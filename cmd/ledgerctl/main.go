package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/veridianhq/veridian-ledger/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	ledgerURL   string
	anchorToken string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Veridian audit ledger CLI",
	Long: `ledgerctl is the command-line interface for the Veridian audit ledger.

It appends events, inspects and verifies the hash chain, and triggers
external anchoring cycles against a running ledgerd instance.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.ledgerctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if ledgerURL == "" {
			ledgerURL = viper.GetString("ledger_url")
		}
		if ledgerURL == "" {
			ledgerURL = "http://localhost:8080"
		}
		if anchorToken == "" {
			anchorToken = viper.GetString("anchor_token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.ledgerctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger", "", "ledgerd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&anchorToken, "token", "", "anchor trigger secret or JWT")

	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(anchorsCmd)
	rootCmd.AddCommand(anchorRunCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if anchorToken != "" {
		opts = append(opts, client.WithAnchorToken(anchorToken))
	}
	return client.New(ledgerURL, opts...)
}

// ── head ─────────────────────────────────────────────────────────────────────

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the ledger head and event count",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newClient().Overview(context.Background())
		if err != nil {
			return fmt.Errorf("fetch overview: %w", err)
		}
		fmt.Printf("Events:   %d\n", o.Events)
		if o.Head.Sequence < 0 {
			fmt.Println("Head:     (empty ledger)")
			return nil
		}
		fmt.Printf("Sequence: %d\n", o.Head.Sequence)
		fmt.Printf("Hash:     %s\n", o.Head.Hash)
		return nil
	},
}

// ── events ───────────────────────────────────────────────────────────────────

var (
	eventsFrom   int64
	eventsTo     int64
	eventsFormat string
)

var eventsCmd = &cobra.Command{
	Use:   "events [sequence]",
	Short: "List a range of events, or show a single event by sequence",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().Int64Var(&eventsFrom, "from", 0, "First sequence to list")
	eventsCmd.Flags().Int64Var(&eventsTo, "to", -1, "Last sequence to list (-1 means head)")
	eventsCmd.Flags().StringVar(&eventsFormat, "format", "text", "Output format: text or json")
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c := newClient()

	if len(args) == 1 {
		seq, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sequence %q: %w", args[0], err)
		}
		e, err := c.Event(ctx, seq)
		if err != nil {
			return fmt.Errorf("fetch event %d: %w", seq, err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}

	to := eventsTo
	if to < 0 {
		o, err := c.Overview(ctx)
		if err != nil {
			return fmt.Errorf("fetch overview: %w", err)
		}
		if o.Head.Sequence < 0 {
			fmt.Println("ledger is empty")
			return nil
		}
		to = o.Head.Sequence
	}

	events, err := c.Events(ctx, eventsFrom, to)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	if eventsFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIMESTAMP\tACTOR\tENTITY\tACTION")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s:%s\t%s:%s\t%s\n",
			e.Sequence, e.Timestamp.Format(time.RFC3339),
			e.ActorType, e.ActorID, e.EntityType, e.EntityID, e.Action)
	}
	return w.Flush()
}

// ── append ───────────────────────────────────────────────────────────────────

var (
	appendActorType    string
	appendActorID      string
	appendEntityType   string
	appendEntityID     string
	appendAction       string
	appendPayload      string
	appendModelVersion string
	appendReasonCodes  []string
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append an event to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(appendPayload)) {
			return fmt.Errorf("--payload is not valid JSON")
		}

		req := client.AppendRequest{
			ActorType:   appendActorType,
			ActorID:     appendActorID,
			EntityType:  appendEntityType,
			EntityID:    appendEntityID,
			Action:      appendAction,
			Payload:     json.RawMessage(appendPayload),
			ReasonCodes: appendReasonCodes,
		}
		if appendModelVersion != "" {
			req.ModelVersion = &appendModelVersion
		}

		e, err := newClient().AppendEvent(context.Background(), req)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		fmt.Printf("✓ Event appended\n\n")
		fmt.Printf("  Sequence: %d\n", e.Sequence)
		fmt.Printf("  Hash:     %s\n", e.Hash)
		fmt.Printf("  Prev:     %s\n", e.PrevHash)
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendActorType, "actor-type", "", "Actor type: human, system, or ai-model")
	appendCmd.Flags().StringVar(&appendActorID, "actor", "", "Actor identifier")
	appendCmd.Flags().StringVar(&appendEntityType, "entity-type", "", "Entity type (e.g. application)")
	appendCmd.Flags().StringVar(&appendEntityID, "entity", "", "Entity identifier")
	appendCmd.Flags().StringVar(&appendAction, "action", "", "Action name (e.g. application_submitted)")
	appendCmd.Flags().StringVar(&appendPayload, "payload", "{}", "Event payload as a JSON object")
	appendCmd.Flags().StringVar(&appendModelVersion, "model-version", "", "Model version (ai-model actors)")
	appendCmd.Flags().StringSliceVar(&appendReasonCodes, "reason-code", nil, "Decision reason code (repeatable)")

	_ = appendCmd.MarkFlagRequired("actor-type")
	_ = appendCmd.MarkFlagRequired("actor")
	_ = appendCmd.MarkFlagRequired("entity-type")
	_ = appendCmd.MarkFlagRequired("entity")
	_ = appendCmd.MarkFlagRequired("action")
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyFrom int64
	verifyTo   int64
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c := newClient()

		var r *client.VerifyResult
		var err error
		if verifyTo >= 0 {
			r, err = c.VerifyRange(ctx, verifyFrom, verifyTo)
		} else {
			r, err = c.Verify(ctx)
		}
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}

		if r.Valid {
			fmt.Printf("✓ Chain valid (%d event(s) checked)\n", r.Events)
			return nil
		}
		fmt.Printf("✗ CHAIN BROKEN at sequence %d (%s)\n", r.FirstBrokenSequence, r.Reason)
		os.Exit(1)
		return nil
	},
}

func init() {
	verifyCmd.Flags().Int64Var(&verifyFrom, "from", 0, "First sequence to verify")
	verifyCmd.Flags().Int64Var(&verifyTo, "to", -1, "Last sequence to verify (-1 means head)")
}

// ── anchors ──────────────────────────────────────────────────────────────────

var anchorsLimit int

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "List recent anchor records",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().Anchors(context.Background(), anchorsLimit)
		if err != nil {
			return fmt.Errorf("fetch anchors: %w", err)
		}

		fmt.Printf("Head: sequence %d, hash %s\n\n", res.Head.Sequence, res.Head.Hash)
		if len(res.Anchors) == 0 {
			fmt.Println("no anchors recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tMETHOD\tSEQ\tHASH\tREFERENCE")
		for _, a := range res.Anchors {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.12s…\t%s\n",
				a.Timestamp.Format(time.RFC3339), a.Method,
				a.AnchoredSequence, a.AnchoredHash, a.ExternalReference)
		}
		return w.Flush()
	},
}

func init() {
	anchorsCmd.Flags().IntVar(&anchorsLimit, "limit", 20, "Maximum records to list")
}

// ── anchor-run ───────────────────────────────────────────────────────────────

var anchorRunCmd = &cobra.Command{
	Use:   "anchor-run [backend ...]",
	Short: "Trigger an anchoring cycle (requires --token)",
	Long: `anchor-run publishes the current chain head to the configured external
backends. Naming backends restricts the cycle:

  ledgerctl anchor-run --token $SECRET gist opentimestamps`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newClient().RunAnchors(context.Background(), args...)
		if err != nil {
			return fmt.Errorf("anchor cycle: %w", err)
		}

		fmt.Printf("Anchored head: sequence %d, hash %s\n\n", report.Head.Sequence, report.Head.Hash)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND\tSTATUS\tREFERENCE\tERROR")
		for _, r := range report.Results {
			ref := ""
			if r.Record != nil {
				ref = r.Record.ExternalReference
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Status, ref, r.Error)
		}
		return w.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ledgerctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledgerctl %s (Veridian audit ledger)\n", version)
	},
}
