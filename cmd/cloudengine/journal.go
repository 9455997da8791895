package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/cloudengine/pkg/cli"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and prune the cloud call journal",
	Long: `Inspect and prune the journal of calls made to the cloud service.

The journal is only persisted with the sqlite backend; the memory backend
lives inside a running server.`,
}

var journalListFlags struct {
	since     string
	until     string
	endpoint  string
	status    string
	requestID string
	limit     int
	offset    int
	format    string
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled cloud calls, newest first",
	Long: `List journaled cloud calls, newest first.

Examples:
  # Failed calls in the last 24 hours
  cloudengine journal list --since 24h --status error

  # Calls made for one server request, as CSV
  cloudengine journal list --request-id 2f1c... --format csv`,
	Args: cobra.NoArgs,
	RunE: runJournalList,
}

var journalPruneFlags struct {
	days       int
	maxRecords int64
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal records outside the retention policy",
	Long: `Delete journal records older than the retention period and the oldest
records beyond the record cap. Flags override journal.retention.`,
	Args: cobra.NoArgs,
	RunE: runJournalPrune,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalPruneCmd)

	f := journalListCmd.Flags()
	f.StringVar(&journalListFlags.since, "since", "", "only calls after this time (RFC3339 or a duration such as 24h)")
	f.StringVar(&journalListFlags.until, "until", "", "only calls before this time (RFC3339 or a duration)")
	f.StringVar(&journalListFlags.endpoint, "endpoint", "", "filter by endpoint (process, properties, evidencekeys)")
	f.StringVar(&journalListFlags.status, "status", "", "filter by status (success, error)")
	f.StringVar(&journalListFlags.requestID, "request-id", "", "filter by server request ID")
	f.IntVar(&journalListFlags.limit, "limit", journal.DefaultQueryLimit, "maximum number of records")
	f.IntVar(&journalListFlags.offset, "offset", 0, "number of records to skip")
	f.StringVarP(&journalListFlags.format, "format", "f", "text", "output format (text, json, csv)")

	journalPruneCmd.Flags().IntVar(&journalPruneFlags.days, "days", -1, "retention period in days (0 keeps everything)")
	journalPruneCmd.Flags().Int64Var(&journalPruneFlags.maxRecords, "max-records", -1, "record cap (0 means no cap)")
}

// recordList renders journal records.
type recordList []*journal.Record

func (l recordList) Header() []string {
	return []string{"TIME", "ENDPOINT", "STATUS", "DURATION", "CONFLICTS", "REQUEST ID", "ERROR"}
}

func (l recordList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.Time.UTC().Format(time.RFC3339Nano),
			r.Endpoint,
			strconv.Itoa(r.StatusCode),
			r.Duration.String(),
			strconv.Itoa(r.Conflicts),
			r.RequestID,
			r.Error,
		})
	}
	return rows
}

func openJournal(cmd *cobra.Command) (*config.Config, journal.Storage, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if _, err := setupLogging(cmd, cfg); err != nil {
		return nil, nil, err
	}
	if cfg.Journal.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("journal backend %q is not persistent; configure journal.backend: sqlite", cfg.Journal.Backend)
	}
	storage, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, nil, err
	}
	return cfg, storage, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(journalListFlags.format))
	if err != nil {
		return err
	}

	now := time.Now()
	query := &journal.Query{
		Endpoint:  journalListFlags.endpoint,
		RequestID: journalListFlags.requestID,
		Limit:     journalListFlags.limit,
		Offset:    journalListFlags.offset,
	}
	if query.Since, err = parseTimeFlag(journalListFlags.since, now); err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	if query.Until, err = parseTimeFlag(journalListFlags.until, now); err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}
	switch s := strings.ToLower(journalListFlags.status); s {
	case "", journal.StatusSuccess, journal.StatusError:
		query.Status = s
	default:
		return fmt.Errorf("invalid --status %q (valid: success, error)", journalListFlags.status)
	}

	_, storage, err := openJournal(cmd)
	if err != nil {
		return cli.NewCommandError("journal list", err)
	}
	defer storage.Close()

	records, err := storage.Query(cmd.Context(), query)
	if err != nil {
		return cli.NewCommandError("journal list", err)
	}
	if records == nil {
		records = []*journal.Record{}
	}
	return formatter.FormatTo(cmd.OutOrStdout(), recordList(records))
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	cfg, storage, err := openJournal(cmd)
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	defer storage.Close()

	retention := cfg.Journal.Retention
	if journalPruneFlags.days >= 0 {
		retention.Days = journalPruneFlags.days
	}
	if journalPruneFlags.maxRecords >= 0 {
		retention.MaxRecords = journalPruneFlags.maxRecords
	}

	deleted, err := journal.NewPruner(storage, retention).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d journal records\n", deleted)
	return nil
}

// parseTimeFlag accepts RFC3339 or a duration measured back from now.
func parseTimeFlag(value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("%q is neither RFC3339 nor a duration", value)
	}
	t := now.Add(-d)
	return &t, nil
}
