// Package engine orchestrates one scheduled tracker run: searching
// each catalog entry, classifying and ranking listings, persisting
// history and minimums, and fanning out notifications and the daily
// report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"protein-hunter/classify"
	"protein-hunter/config"
	"protein-hunter/minimum"
	"protein-hunter/models"
	"protein-hunter/persona"
	"protein-hunter/publish"
	"protein-hunter/rank"
	"protein-hunter/report"
	"protein-hunter/tracing"
)

const (
	dateLayout = "2006-01-02"
	windowDays = 30
)

// Store is the persistence surface the engine needs.
type Store interface {
	Catalog(ctx context.Context) ([]models.CatalogEntry, error)
	AppendHistory(ctx context.Context, offers []*models.Offer) (int, error)
	MinimumsByDate(ctx context.Context, date string) (map[string]models.MinimumRecord, error)
	AllMinimums(ctx context.Context) ([]models.MinimumRecord, error)
	UpsertMinimum(ctx context.Context, rec models.MinimumRecord) error
}

// Searcher fetches raw listings for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, total int) ([]models.RawListing, error)
}

// Notifier delivers titled alert messages.
type Notifier interface {
	Notify(ctx context.Context, title string, lines []string) error
}

// Publisher posts the daily report as a blog draft.
type Publisher interface {
	PostDraft(ctx context.Context, title, markdown string) (*publish.Result, error)
	Endpoint() string
}

// Exporter receives the appended offers for flat-file export.
type Exporter interface {
	Write(offers []*models.Offer) error
}

// Deps are the engine's collaborators. Exporter may be nil.
type Deps struct {
	Store     Store
	Searcher  Searcher
	Notifier  Notifier
	Publisher Publisher
	Exporter  Exporter
}

// Engine runs the daily evaluation pipeline. Safe for a single caller;
// runs are serial.
type Engine struct {
	cfg     *config.Config
	deps    Deps
	metrics *Metrics
	tracer  *tracing.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// New builds an engine. metrics and tracer may be nil, logger nil
// falls back to slog.Default.
func New(cfg *config.Config, deps Deps, metrics *Metrics, tracer *tracing.Tracer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
		now:     time.Now,
	}
}

// entryOutcome holds a catalog entry's ranked day's offers.
type entryOutcome struct {
	entry models.CatalogEntry
	top   []*models.Offer
}

func (oc entryOutcome) best() *models.Offer { return oc.top[0] }

// Run executes one full tracker run for the current date in the
// configured timezone. The returned result is non-nil whenever the run
// progressed past loading state, even on error.
func (e *Engine) Run(ctx context.Context) (*models.RunResult, error) {
	start := e.now()
	loc := e.cfg.Location()
	today := start.In(loc)
	date := today.Format(dateLayout)
	yesterday := today.AddDate(0, 0, -1).Format(dateLayout)

	ctx, span := e.startSpan(ctx, "tracker.run")
	defer span.End()

	result := &models.RunResult{
		RunID:     uuid.NewString(),
		Date:      date,
		StartTime: start,
	}
	defer func() {
		result.EndTime = e.now()
		e.metrics.ObserveRun(result.EndTime.Sub(start))
	}()

	logger := e.logger.With("run_id", result.RunID, "date", date)
	logger.Info("run starting")

	catalog, err := e.deps.Store.Catalog(ctx)
	if err != nil {
		return result, fmt.Errorf("load catalog: %w", err)
	}
	yesterdayMins, err := e.deps.Store.MinimumsByDate(ctx, yesterday)
	if err != nil {
		return result, fmt.Errorf("load yesterday minimums: %w", err)
	}
	history, err := e.deps.Store.AllMinimums(ctx)
	if err != nil {
		return result, fmt.Errorf("load minimum history: %w", err)
	}
	tracker := minimum.NewTracker(minimumSlice(yesterdayMins), history)

	var allOffers []*models.Offer
	var outcomes []entryOutcome
	first := true
	for _, entry := range catalog {
		if err := entry.Validate(); err != nil {
			logger.Warn("skipping catalog entry", "error", err)
			result.SkippedEntries++
			e.metrics.IncEntrySkipped()
			continue
		}
		if !first {
			if err := sleepCtx(ctx, e.cfg.RequestSleep); err != nil {
				return result, err
			}
		}
		first = false

		summary, ranked, err := e.evaluateEntry(ctx, entry, date, tracker)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("search %s: %v", entry.ID, err))
			logger.Error("entry search failed", "catalog_id", entry.ID, "error", err)
			continue
		}
		result.Entries = append(result.Entries, summary)
		if len(ranked) > 0 {
			allOffers = append(allOffers, ranked...)
			outcomes = append(outcomes, entryOutcome{entry: entry, top: ranked})
		} else {
			logger.Info("no valid offers for entry", "catalog_id", entry.ID, "fetched", summary.Fetched)
		}
	}

	if e.cfg.StrictMode && len(allOffers) == 0 {
		return result, fmt.Errorf("strict mode: no offers collected for any catalog entry")
	}

	appended, err := e.deps.Store.AppendHistory(ctx, allOffers)
	if err != nil {
		return result, fmt.Errorf("append history: %w", err)
	}
	result.AppendedRows = appended

	if e.deps.Exporter != nil && len(allOffers) > 0 {
		if err := e.deps.Exporter.Write(allOffers); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("csv export: %v", err))
		}
	}

	if err := e.recordMinimums(ctx, date, outcomes, tracker, result, logger); err != nil {
		return result, err
	}

	endpoint, status := e.publishReport(ctx, date, today, outcomes, tracker, history, result, logger)

	summaryTitle := fmt.Sprintf("日次実行サマリー %s", date)
	if err := e.deps.Notifier.Notify(ctx, summaryTitle, report.SummaryLines(result, endpoint, status)); err != nil {
		logger.Warn("summary notification failed", "error", err)
	}

	logger.Info("run finished",
		"appended_rows", result.AppendedRows,
		"notifications", result.Notifications,
		"published", result.Published,
		"errors", len(result.Errors),
	)
	if len(result.Errors) > 0 {
		return result, fmt.Errorf("run completed with %d error(s): %s", len(result.Errors), result.Errors[0])
	}
	return result, nil
}

// evaluateEntry searches, classifies, and ranks one catalog entry's
// listings. The returned error is the search failure, if any;
// classification failures are reason counts, never errors.
func (e *Engine) evaluateEntry(ctx context.Context, entry models.CatalogEntry, date string, tracker *minimum.Tracker) (models.EntrySummary, []*models.Offer, error) {
	ctx, span := e.startSpan(ctx, "tracker.entry")
	defer span.End()
	span.SetAttributes(attribute.String("catalog_id", entry.ID))

	summary := models.EntrySummary{
		CatalogID:  entry.ID,
		Keyword:    entry.Keyword,
		DropCounts: make(map[string]int),
	}

	listings, err := e.deps.Searcher.Search(ctx, entry.Keyword, e.cfg.FetchHits)
	if err != nil {
		span.RecordError(err)
		return summary, nil, err
	}
	summary.Fetched = len(listings)
	e.metrics.AddFetched(len(listings))

	classifier := classify.New(entry, date, classify.Options{
		ExcludeKeywords:    e.cfg.ExcludeKeywords,
		DefaultShippingYen: e.cfg.DefaultShippingYen,
		ExtraPointRate:     e.cfg.ExtraPointRate,
		CapacityMatch:      e.cfg.CapacityMatch,
	})

	seen := make(map[models.OfferKey]struct{}, len(listings))
	var offers []*models.Offer
	for _, raw := range listings {
		offer, reason := classifier.Classify(raw, seen)
		if offer == nil {
			summary.DropCounts[string(reason)]++
			e.metrics.IncRejection(string(reason))
			continue
		}
		seen[offer.Key()] = struct{}{}
		offers = append(offers, offer)
	}
	summary.Accepted = len(offers)
	e.metrics.AddAccepted(len(offers))

	ranked := rank.Rank(offers, e.cfg.StoreHits)
	summary.Stored = len(ranked)
	if len(ranked) > 0 {
		summary.Flags = tracker.Flags(ranked[0])
	}
	return summary, ranked, nil
}

// recordMinimums persists each entry's daily minimum and sends change
// notifications. Persistence failures are fatal; notification failures
// are logged and swallowed.
func (e *Engine) recordMinimums(ctx context.Context, date string, outcomes []entryOutcome, tracker *minimum.Tracker, result *models.RunResult, logger *slog.Logger) error {
	for _, oc := range outcomes {
		best := oc.best()
		flags := tracker.Flags(best)

		rec := models.MinimumRecord{
			Date:      date,
			CatalogID: oc.entry.ID,
			Cost:      best.EffectiveCost,
			Shop:      best.ShopName,
			URL:       best.URL,
		}
		if err := e.deps.Store.UpsertMinimum(ctx, rec); err != nil {
			return fmt.Errorf("upsert minimum %s: %w", oc.entry.ID, err)
		}

		if !flags.NewAllTimeLow && !flags.ChangedShop {
			continue
		}
		var yRec, aRec *models.MinimumRecord
		if y, ok := tracker.Yesterday(oc.entry.ID); ok {
			yRec = &y
		}
		if a, ok := tracker.AllTime(oc.entry.ID); ok {
			aRec = &a
		}
		title, lines := report.ChangeNotification(oc.entry, best, oc.top, yRec, aRec, flags, date)
		// Delivery is best-effort: a webhook failure never fails a run
		// whose persistence already succeeded.
		if err := e.deps.Notifier.Notify(ctx, title, lines); err != nil {
			logger.Warn("change notification failed", "catalog_id", oc.entry.ID, "error", err)
			continue
		}
		result.Notifications++
		e.metrics.IncNotification()
		logger.Info("change notification sent", "catalog_id", oc.entry.ID, "all_time_low", flags.NewAllTimeLow)
	}
	return nil
}

// publishReport builds the daily report around the overall best offer
// and posts it as a blog draft. Returns the publish endpoint and HTTP
// status for the run summary.
func (e *Engine) publishReport(ctx context.Context, date string, today time.Time, outcomes []entryOutcome, tracker *minimum.Tracker, history []models.MinimumRecord, result *models.RunResult, logger *slog.Logger) (string, int) {
	if len(outcomes) == 0 {
		return e.deps.Publisher.Endpoint(), 0
	}

	cohort := make([]*models.Offer, 0, len(outcomes))
	for _, oc := range outcomes {
		cohort = append(cohort, oc.best())
	}
	cohort = rank.Rank(cohort, len(cohort))
	best := cohort[0]

	yesterdayCost := 0.0
	hasBaseline := false
	if y, ok := tracker.Yesterday(best.CatalogID); ok {
		yesterdayCost = y.Cost
		hasBaseline = true
	}
	windowMin, hasWindow := minimum.WindowMin(history, best.CatalogID, date, windowDays)
	diff := report.NewPriceDiff(best.EffectiveCost, yesterdayCost, hasBaseline, windowMin, hasWindow)

	variant := report.SelectVariant(today.Weekday(), e.cfg.ForcedVariant)
	assignments := persona.Assign(cohort)
	rep := report.Build(date, cohort, diff, variant, assignments)
	logger.Info("daily report built", "level", string(rep.Level), "variant", variant.Code, "personas", len(assignments))

	title := fmt.Sprintf("%s（%s）", variant.Headline, date)
	pubResult, err := e.deps.Publisher.PostDraft(ctx, title, rep.Markdown)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("publish: %v", err))
	}
	if pubResult == nil {
		return e.deps.Publisher.Endpoint(), 0
	}
	result.Published = pubResult.OK
	if pubResult.Skipped {
		logger.Info("blog draft skipped", "reason", pubResult.Message)
	}
	return pubResult.Endpoint, pubResult.StatusCode
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if e.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return e.tracer.StartSpan(ctx, name)
}

func minimumSlice(m map[string]models.MinimumRecord) []models.MinimumRecord {
	out := make([]models.MinimumRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
