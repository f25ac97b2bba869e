// Package maintenance implements the operator command for rebuilding
// projections and inspecting the ledger from the shell.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	platformcmd "github.com/louisbranch/meeting.ledger/internal/platform/cmd"
	apperrors "github.com/louisbranch/meeting.ledger/internal/platform/errors"
	"github.com/louisbranch/meeting.ledger/internal/platform/timeouts"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/app"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
)

const (
	defaultSearchLimit = 20
	defaultEventsLimit = 50
)

// Config holds maintenance command configuration. The embedded ledger
// settings come from MEETING_LEDGER_* env and may be overridden by flags.
type Config struct {
	app.Config
	Timeout      time.Duration `env:"MEETING_LEDGER_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Rebuild      bool
	Summary      bool
	Search       string
	SearchLimit  int
	EventsFilter string
	EventsLimit  int
	JSONOutput   bool
}

// ParseConfig reads env defaults and then flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Timeout:     timeouts.Maintenance,
		SearchLimit: defaultSearchLimit,
		EventsLimit: defaultEventsLimit,
	}

	fs.StringVar(&cfg.EventsDBPath, "events-db-path", "", "path to events sqlite database (default: MEETING_LEDGER_EVENTS_DB_PATH or data/ledger-events.db)")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", "", "path to projections sqlite database (default: MEETING_LEDGER_PROJECTIONS_DB_PATH or data/ledger-projections.db)")
	fs.Float64Var(&cfg.DuplicateThreshold, "duplicate-threshold", 0, "duplicate similarity threshold in [0, 1] (default: MEETING_LEDGER_DUPLICATE_THRESHOLD or 0.85)")
	fs.IntVar(&cfg.HandlerWorkers, "handler-workers", 0, "event bus handler workers (default: MEETING_LEDGER_HANDLER_WORKERS or 8)")
	fs.BoolVar(&cfg.Rebuild, "rebuild", false, "rebuild all projections from the event log")
	fs.BoolVar(&cfg.Summary, "summary", false, "print the open item summary")
	fs.StringVar(&cfg.Search, "search", "", "search query (word:value filters plus free text)")
	fs.IntVar(&cfg.SearchLimit, "search-limit", cfg.SearchLimit, "max results per search source")
	fs.StringVar(&cfg.EventsFilter, "events-filter", "", "list events matching an AIP-160 filter (for example type = \"RiskExtracted\")")
	fs.IntVar(&cfg.EventsLimit, "events-limit", cfg.EventsLimit, "max events to list")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "log level (debug|info|warn|error) (default: MEETING_LEDGER_LOG_LEVEL or info)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout (default: MEETING_LEDGER_MAINTENANCE_TIMEOUT or 10m)")
	if err := platformcmd.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}

	cfg.Config = cfg.Config.WithDefaults()
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.Rebuild && !c.Summary && strings.TrimSpace(c.Search) == "" && strings.TrimSpace(c.EventsFilter) == "" {
		return errors.New("nothing to do: use -rebuild, -summary, -search, or -events-filter")
	}
	if c.SearchLimit <= 0 {
		return errors.New("-search-limit must be > 0")
	}
	if c.EventsLimit <= 0 {
		return errors.New("-events-limit must be > 0")
	}
	return c.Config.Validate()
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	logger, err := platformcmd.NewLogger(errOut, cfg.LogLevel, cfg.JSONOutput)
	if err != nil {
		return err
	}

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMaintenance, logger, func(ctx context.Context) error {
		ledger, err := app.Open(ctx, cfg.Config, app.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				fmt.Fprintf(errOut, "Error: close ledger: %v\n", err)
			}
		}()

		return runWithDeps(ctx, cfg, services{
			rebuild: ledger.Builder,
			search:  ledger.Search,
			summary: ledger.OpenItems,
			events:  ledger.Events,
		}, out, errOut)
	})
}

type runResult struct {
	Mode   string `json:"mode"`
	Report any    `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

func (r *runResult) fail(err error) {
	r.Error = err.Error()
	r.Code = string(apperrors.GetCode(err))
}

func runWithDeps(ctx context.Context, cfg Config, svc services, out io.Writer, errOut io.Writer) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	var results []runResult
	if cfg.Rebuild {
		results = append(results, runRebuild(ctx, svc.rebuild))
	}
	if cfg.Summary {
		results = append(results, runSummary(ctx, svc.summary))
	}
	if query := strings.TrimSpace(cfg.Search); query != "" {
		results = append(results, runSearch(ctx, svc.search, query, cfg.SearchLimit))
	}
	if filter := strings.TrimSpace(cfg.EventsFilter); filter != "" {
		results = append(results, runEvents(ctx, svc.events, filter, cfg.EventsLimit))
	}

	failed := false
	for _, result := range results {
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			printResult(out, errOut, result)
		}
		if result.Error != "" {
			failed = true
		}
	}
	if failed {
		return errors.New("maintenance failed")
	}
	return nil
}

type rebuildReport struct {
	Events        int    `json:"events"`
	Meetings      int    `json:"meetings"`
	ActionItems   int    `json:"action_items"`
	Decisions     int    `json:"decisions"`
	Risks         int    `json:"risks"`
	Issues        int    `json:"issues"`
	StatusChanges int    `json:"status_changes"`
	Skipped       int    `json:"skipped"`
	LastSeq       uint64 `json:"last_seq"`
}

func runRebuild(ctx context.Context, rebuild projectionRebuilder) runResult {
	result := runResult{Mode: "rebuild"}
	if rebuild == nil {
		result.Error = "projection builder is not configured"
		return result
	}
	rebuilt, err := rebuild.RebuildAll(ctx)
	if err != nil {
		result.fail(err)
		return result
	}
	result.Report = rebuildReport(rebuilt)
	return result
}

type summaryReport struct {
	Total          int            `json:"total"`
	Overdue        int            `json:"overdue"`
	DueToday       int            `json:"due_today"`
	DueWithin7Days int            `json:"due_within_7_days"`
	ByType         map[string]int `json:"by_type"`
}

func runSummary(ctx context.Context, summary summarizer) runResult {
	result := runResult{Mode: "summary"}
	if summary == nil {
		result.Error = "open item view is not configured"
		return result
	}
	s, err := summary.GetSummary(ctx)
	if err != nil {
		result.fail(err)
		return result
	}
	report := summaryReport{
		Total:          s.Total,
		Overdue:        s.Overdue,
		DueToday:       s.DueToday,
		DueWithin7Days: s.DueWithin7Days,
		ByType:         map[string]int{},
	}
	for _, t := range raid.ItemTypes() {
		report.ByType[string(t)] = s.ByType[t]
	}
	result.Report = report
	return result
}

type raidHitReport struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Description  string  `json:"description"`
	Owner        string  `json:"owner,omitempty"`
	Status       string  `json:"status,omitempty"`
	MeetingID    string  `json:"meeting_id"`
	MeetingTitle string  `json:"meeting_title,omitempty"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

type transcriptHitReport struct {
	ID           string  `json:"id"`
	MeetingID    string  `json:"meeting_id"`
	MeetingTitle string  `json:"meeting_title,omitempty"`
	Speaker      string  `json:"speaker"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

type searchReport struct {
	Query       string                `json:"query"`
	RaidItems   []raidHitReport       `json:"raid_items"`
	Transcripts []transcriptHitReport `json:"transcripts"`
}

func runSearch(ctx context.Context, s searcher, query string, limit int) runResult {
	result := runResult{Mode: "search"}
	if s == nil {
		result.Error = "search service is not configured"
		return result
	}
	found := s.Search(ctx, query, limit)
	report := searchReport{
		Query:       query,
		RaidItems:   make([]raidHitReport, 0, len(found.RaidItems)),
		Transcripts: make([]transcriptHitReport, 0, len(found.Transcripts)),
	}
	for _, hit := range found.RaidItems {
		report.RaidItems = append(report.RaidItems, raidHitReport{
			ID:           hit.Item.ID,
			Type:         string(hit.Item.ItemType),
			Description:  hit.Item.Description,
			Owner:        hit.Item.Owner,
			Status:       hit.Item.Status,
			MeetingID:    hit.Item.MeetingID,
			MeetingTitle: hit.MeetingTitle,
			Snippet:      hit.Snippet,
			Score:        hit.Score,
		})
	}
	for _, hit := range found.Transcripts {
		report.Transcripts = append(report.Transcripts, transcriptHitReport{
			ID:           hit.Transcript.ID,
			MeetingID:    hit.Transcript.MeetingID,
			MeetingTitle: hit.MeetingTitle,
			Speaker:      hit.Transcript.Speaker,
			Snippet:      hit.Snippet,
			Score:        hit.Score,
		})
	}
	result.Report = report
	return result
}

type eventReport struct {
	Seq           uint64          `json:"seq"`
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	AggregateID   string          `json:"aggregate_id,omitempty"`
	AggregateType string          `json:"aggregate_type,omitempty"`
	Version       int64           `json:"version,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

func runEvents(ctx context.Context, events eventLister, filter string, limit int) runResult {
	result := runResult{Mode: "events"}
	if events == nil {
		result.Error = "event store is not configured"
		return result
	}
	records, err := events.ListEventsFiltered(ctx, filter, limit, 0)
	if err != nil {
		result.fail(err)
		return result
	}
	report := make([]eventReport, 0, len(records))
	for _, rec := range records {
		report = append(report, eventReport{
			Seq:           rec.Seq,
			ID:            rec.ID,
			Type:          string(rec.Type),
			Timestamp:     rec.Timestamp,
			AggregateID:   rec.AggregateID,
			AggregateType: rec.AggregateType,
			Version:       rec.Version,
			Payload:       json.RawMessage(rec.PayloadJSON),
		})
	}
	result.Report = report
	return result
}

func outputJSON(out io.Writer, errOut io.Writer, result runResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result runResult) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "Error: %s: %s (%s)\n", result.Mode, result.Error, result.Code)
		return
	}
	switch report := result.Report.(type) {
	case rebuildReport:
		fmt.Fprintf(out, "Rebuilt projections through seq %d (%d events, %d skipped)\n", report.LastSeq, report.Events, report.Skipped)
		fmt.Fprintf(out, "Meetings: %d, actions: %d, decisions: %d, risks: %d, issues: %d, status changes: %d\n",
			report.Meetings, report.ActionItems, report.Decisions, report.Risks, report.Issues, report.StatusChanges)
	case summaryReport:
		fmt.Fprintf(out, "Open items: %d (overdue: %d, due today: %d, due within 7 days: %d)\n",
			report.Total, report.Overdue, report.DueToday, report.DueWithin7Days)
		for _, t := range raid.ItemTypes() {
			fmt.Fprintf(out, "  %s: %d\n", t, report.ByType[string(t)])
		}
	case searchReport:
		fmt.Fprintf(out, "RAID items (%d):\n", len(report.RaidItems))
		for _, hit := range report.RaidItems {
			fmt.Fprintf(out, "  [%s] %s %s (%s) score=%.3f\n", hit.Type, hit.ID, hit.Snippet, hit.MeetingTitle, hit.Score)
		}
		fmt.Fprintf(out, "Transcripts (%d):\n", len(report.Transcripts))
		for _, hit := range report.Transcripts {
			fmt.Fprintf(out, "  %s %s: %s (%s) score=%.3f\n", hit.ID, hit.Speaker, hit.Snippet, hit.MeetingTitle, hit.Score)
		}
	case []eventReport:
		fmt.Fprintf(out, "Events (%d):\n", len(report))
		for _, evt := range report {
			fmt.Fprintf(out, "  seq=%d %s %s aggregate=%s version=%d\n", evt.Seq, evt.Timestamp.Format(time.RFC3339), evt.Type, evt.AggregateID, evt.Version)
		}
	}
}
