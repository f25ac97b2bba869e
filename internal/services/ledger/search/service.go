// Package search answers ranked full-text queries over RAID items and
// transcripts using a small filter syntax:
//
//	type:risk owner:alice vendor delay
//
// Tokens of the form key:value become filters; everything else is free text.
// RAID item search honours type, owner, and status; transcript search honours
// speaker. Filters never run a query on their own.
package search

import (
	"context"
	"log/slog"

	"github.com/louisbranch/meeting.ledger/internal/platform/otel"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultLimit = 20

// Filter keys recognized by each source.
const (
	FilterType    = "type"
	FilterOwner   = "owner"
	FilterStatus  = "status"
	FilterSpeaker = "speaker"
)

// Results holds one ranked list per source.
type Results struct {
	Query       Query
	RaidItems   []storage.RaidItemHit
	Transcripts []storage.TranscriptHit
}

// Service runs searches against a SearchIndex.
type Service struct {
	index  storage.SearchIndex
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService builds a search service. A nil logger uses slog.Default.
func NewService(index storage.SearchIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, logger: logger, tracer: otel.Tracer("search")}
}

// Search parses query and runs one lookup per source, each capped at limit.
// A non-positive limit falls back to 20.
// A failing source is logged and comes back empty; Search itself never fails.
func (s *Service) Search(ctx context.Context, query string, limit int) Results {
	parsed := ParseQuery(query)
	results := Results{
		Query:       parsed,
		RaidItems:   []storage.RaidItemHit{},
		Transcripts: []storage.TranscriptHit{},
	}
	if parsed.Text == "" || s == nil || s.index == nil {
		return results
	}
	limit = resolveLimit(limit)
	match := MatchExpression(parsed.Text)

	ctx, span := s.tracer.Start(ctx, "search.search", trace.WithAttributes(
		attribute.Int("search.limit", limit),
		attribute.Int("search.filters", len(parsed.Filters)),
	))
	defer span.End()

	var g errgroup.Group
	g.Go(func() error {
		results.RaidItems = s.searchRaidItems(ctx, parsed, match, limit)
		return nil
	})
	g.Go(func() error {
		results.Transcripts = s.searchTranscripts(ctx, parsed, match, limit)
		return nil
	})
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("search.raid_hits", len(results.RaidItems)),
		attribute.Int("search.transcript_hits", len(results.Transcripts)),
	)
	return results
}

func (s *Service) searchRaidItems(ctx context.Context, parsed Query, match string, limit int) []storage.RaidItemHit {
	q := storage.RaidSearchQuery{
		Match:  match,
		Owner:  parsed.Filter(FilterOwner),
		Status: parsed.Filter(FilterStatus),
		Limit:  limit,
	}
	if raw := parsed.Filter(FilterType); raw != "" {
		itemType, ok := raid.ParseItemType(raw)
		if !ok {
			s.logger.DebugContext(ctx, "unknown item type filter", slog.String("type", raw))
			return []storage.RaidItemHit{}
		}
		q.ItemType = itemType
	}
	hits, err := s.index.SearchRaidItems(ctx, q)
	if err != nil {
		s.logger.WarnContext(ctx, "raid item search failed", slog.String("match", match), slog.Any("error", err))
		return []storage.RaidItemHit{}
	}
	if hits == nil {
		return []storage.RaidItemHit{}
	}
	return hits
}

func (s *Service) searchTranscripts(ctx context.Context, parsed Query, match string, limit int) []storage.TranscriptHit {
	hits, err := s.index.SearchTranscripts(ctx, storage.TranscriptSearchQuery{
		Match:   match,
		Speaker: parsed.Filter(FilterSpeaker),
		Limit:   limit,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transcript search failed", slog.String("match", match), slog.Any("error", err))
		return []storage.TranscriptHit{}
	}
	if hits == nil {
		return []storage.TranscriptHit{}
	}
	return hits
}

func resolveLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
