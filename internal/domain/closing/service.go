package closing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/core/tx"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/events"
	"fireblue/internal/domain/production"
	"fireblue/pkg/logger"
)

// GenerationResult is the outcome of Generate.
type GenerationResult struct {
	Closing *WeeklyClosing
	Report  *GenerationReport
}

// ServiceConfig holds the optional collaborators of Service.
type ServiceConfig struct {
	Publisher events.Publisher
	Audit     AuditLog
	Metrics   Metrics
	// Location interprets request dates. Defaults to time.Local.
	Location *time.Location
}

// Service is the closing record manager.
type Service struct {
	repo       Repository
	aggregator *Aggregator
	txManager  tx.Manager
	publisher  events.Publisher
	audit      AuditLog
	metrics    Metrics
	loc        *time.Location
	now        func() time.Time
}

// NewService creates a closing service.
func NewService(repo Repository, source MovementSource, txManager tx.Manager, cfg ServiceConfig) *Service {
	s := &Service{
		repo:       repo,
		aggregator: NewAggregator(source),
		txManager:  txManager,
		publisher:  cfg.Publisher,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		loc:        cfg.Location,
		now:        time.Now,
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// ParseRange parses request dates in the service location.
func (s *Service) ParseRange(start, end string) (period.Range, error) {
	return period.Parse(start, end, s.loc)
}

// PreviewWorkshops lists the workshops a generate call for the range would consider.
func (s *Service) PreviewWorkshops(ctx context.Context, start, end string) ([]production.Workshop, error) {
	r, err := s.ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	list, err := s.aggregator.FindWorkshops(ctx, r)
	if err != nil {
		return nil, apperror.Classify(err)
	}
	return list, nil
}

// Generate creates or reuses the weekly closing for the ISO week of start and
// attaches a workshop closing for every workshop that has billable movement
// in the range and no record in that week yet.
//
// Each workshop runs in its own savepoint. A failing workshop is reported and
// does not undo the others.
func (s *Service) Generate(ctx context.Context, start, end string) (*GenerationResult, error) {
	r, err := s.ParseRange(start, end)
	if err != nil {
		return nil, err
	}

	started := s.now()
	report := &GenerationReport{Week: r.WeekKey()}
	var week *WeeklyClosing

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		candidate := &WeeklyClosing{
			ID:         id.New(),
			Week:       r.WeekKey(),
			StartDate:  r.Start,
			EndDate:    r.End,
			Status:     StatusOpen,
			TotalValue: types.Zero(),
			CreatedAt:  started,
			UpdatedAt:  started,
		}
		var err error
		week, err = s.repo.UpsertWeek(ctx, candidate)
		if err != nil {
			return fmt.Errorf("upsert week %s: %w", candidate.Week, err)
		}
		report.NewWeek = week.ID == candidate.ID

		if week.Status == StatusClosed {
			report.WeekClosed = true
			week.Workshops, err = s.repo.ListWorkshopClosings(ctx, week.ID)
			return err
		}

		if err := s.attachWorkshops(ctx, week, r, report); err != nil {
			return err
		}

		if err := s.reloadTotals(ctx, week); err != nil {
			return err
		}

		return s.audit.Record(ctx, AuditGenerate, week.ID, map[string]any{
			"range":  r.String(),
			"report": report,
			"totals": map[string]any{"pieces": week.TotalPieces, "value": types.FormatMoney(week.TotalValue)},
		})
	})
	s.metrics.ObserveGeneration(report, s.now().Sub(started), err)
	if err != nil {
		return nil, apperror.Classify(err)
	}

	logger.Info(ctx, "weekly closing generated",
		"closing_id", week.ID,
		"week", week.Week,
		"new_week", report.NewWeek,
		"created", report.Count(OutcomeCreated),
		"skipped_existing", report.Count(OutcomeSkippedExisting),
		"skipped_empty", report.Count(OutcomeSkippedEmpty),
		"failed", report.Count(OutcomeFailed),
	)

	events.Emit(ctx, s.publisher, &events.ClosingGenerated{
		ClosingID:   week.ID.String(),
		Week:        week.Week,
		Created:     report.Count(OutcomeCreated),
		Skipped:     report.Count(OutcomeSkippedExisting) + report.Count(OutcomeSkippedEmpty),
		Failed:      report.Count(OutcomeFailed),
		TotalPieces: week.TotalPieces,
		TotalValue:  types.FormatMoney(week.TotalValue),
		GeneratedAt: started,
	})

	return &GenerationResult{Closing: week, Report: report}, nil
}

func (s *Service) attachWorkshops(ctx context.Context, week *WeeklyClosing, r period.Range, report *GenerationReport) error {
	workshops, err := s.aggregator.FindWorkshops(ctx, r)
	if err != nil {
		return err
	}
	existing, err := s.repo.WorkshopIDs(ctx, week.ID)
	if err != nil {
		return fmt.Errorf("existing workshop closings: %w", err)
	}

	for _, w := range workshops {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := WorkshopResult{WorkshopID: w.ID, WorkshopName: w.Name}
		if _, ok := existing[w.ID]; ok {
			result.Outcome = OutcomeSkippedExisting
			report.add(result)
			continue
		}

		err := s.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
			wc, err := s.aggregator.Compute(ctx, w, r)
			if err != nil {
				return err
			}
			if wc == nil {
				result.Outcome = OutcomeSkippedEmpty
				return nil
			}
			wc.ClosingID = week.ID
			wc.CreatedAt = s.now()
			wc.UpdatedAt = wc.CreatedAt

			inserted, err := s.repo.InsertWorkshopClosing(ctx, wc)
			if err != nil {
				return fmt.Errorf("insert workshop closing: %w", err)
			}
			if inserted {
				result.Outcome = OutcomeCreated
			} else {
				result.Outcome = OutcomeSkippedExisting
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			result.Outcome = OutcomeFailed
			result.Reason = failureReason(err)
			logger.Warn(ctx, "workshop closing failed",
				"week", week.Week,
				"workshop", w.Name,
				"workshop_id", w.ID,
				"error", err,
			)
		}
		report.add(result)
	}
	return nil
}

func failureReason(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	return "falha ao calcular o fechamento da banca"
}

// reloadTotals loads all workshop closings of week and persists recomputed totals.
func (s *Service) reloadTotals(ctx context.Context, week *WeeklyClosing) error {
	subs, err := s.repo.ListWorkshopClosings(ctx, week.ID)
	if err != nil {
		return fmt.Errorf("list workshop closings: %w", err)
	}
	week.Workshops = subs
	week.Recalculate()
	week.UpdatedAt = s.now()
	if err := s.repo.UpdateTotals(ctx, week); err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	return nil
}

// List returns weekly summaries, newest week first, and the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Summary, int64, error) {
	filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Classify(fmt.Errorf("list closings: %w", err))
	}
	return items, total, nil
}

// Get returns a weekly closing with its workshop closings and items.
func (s *Service) Get(ctx context.Context, closingID id.ID) (*WeeklyClosing, error) {
	week, err := s.repo.GetByID(ctx, closingID)
	if err != nil {
		return nil, apperror.Classify(err)
	}
	week.Workshops, err = s.repo.ListWorkshopClosings(ctx, closingID)
	if err != nil {
		return nil, apperror.Classify(fmt.Errorf("list workshop closings: %w", err))
	}
	return week, nil
}

// FinalizeWorkshop marks a pending workshop closing as paid and stamps the
// payment date. It returns false, leaving the record untouched, when the
// record is not pending.
func (s *Service) FinalizeWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error) {
	var (
		applied bool
		wc      *WorkshopClosing
	)
	now := s.now()

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		wc, err = s.repo.GetWorkshopClosing(ctx, closingID, workshopID)
		if err != nil {
			return err
		}
		if wc.Status != WorkshopPending {
			return nil
		}
		applied, err = s.repo.TransitionWorkshop(ctx, wc.ID, WorkshopPending, WorkshopPaid, &now)
		if err != nil {
			return fmt.Errorf("mark workshop closing paid: %w", err)
		}
		if !applied {
			return nil
		}
		wc.Status = WorkshopPaid
		wc.PaidAt = &now
		return s.audit.Record(ctx, AuditFinalizeWorkshop, closingID, wc)
	})
	s.metrics.ObserveTransition(AuditFinalizeWorkshop, applied)
	if err != nil {
		return false, apperror.Classify(err)
	}
	if !applied {
		logger.Info(ctx, "workshop closing not finalized",
			"closing_id", closingID, "workshop_id", workshopID, "status", wc.Status)
		return false, nil
	}

	s.emitWorkshopChange(ctx, events.TypeWorkshopClosingPaid, wc, now)
	return true, nil
}

// CancelWorkshop moves a pending workshop closing to cancelled. Cancelled
// records are excluded from the weekly totals. Returns false when the record
// is not pending.
func (s *Service) CancelWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error) {
	var (
		applied bool
		wc      *WorkshopClosing
	)
	now := s.now()

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		week, err := s.openWeekForUpdate(ctx, closingID, "cancel workshop closing of")
		if err != nil {
			return err
		}
		wc, err = s.repo.GetWorkshopClosing(ctx, closingID, workshopID)
		if err != nil {
			return err
		}
		if wc.Status != WorkshopPending {
			return nil
		}
		applied, err = s.repo.TransitionWorkshop(ctx, wc.ID, WorkshopPending, WorkshopCancelled, nil)
		if err != nil || !applied {
			return err
		}
		wc.Status = WorkshopCancelled
		if err := s.reloadTotals(ctx, week); err != nil {
			return err
		}
		return s.audit.Record(ctx, AuditCancelWorkshop, closingID, wc)
	})
	s.metrics.ObserveTransition(AuditCancelWorkshop, applied)
	if err != nil {
		return false, apperror.Classify(err)
	}
	if !applied {
		return false, nil
	}

	s.emitWorkshopChange(ctx, events.TypeWorkshopClosingCancelled, wc, now)
	return true, nil
}

// RecomputeWorkshop re-runs the aggregation over the week's stored range and
// replaces the items and totals of a pending workshop closing. Paid and
// cancelled records are refused.
func (s *Service) RecomputeWorkshop(ctx context.Context, closingID, workshopID id.ID) (*WorkshopClosing, error) {
	var wc *WorkshopClosing
	now := s.now()

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		week, err := s.openWeekForUpdate(ctx, closingID, "recompute workshop closing of")
		if err != nil {
			return err
		}
		wc, err = s.repo.GetWorkshopClosing(ctx, closingID, workshopID)
		if err != nil {
			return err
		}
		if wc.Status != WorkshopPending {
			return apperror.NewStateConflict("fechamento_banca", "recompute", string(wc.Status))
		}

		workshop, err := s.aggregator.source.GetWorkshop(ctx, workshopID)
		if err != nil {
			return err
		}
		computed, err := s.aggregator.Compute(ctx, *workshop, week.Range(s.loc))
		if err != nil {
			return err
		}

		var items []LineItem
		if computed != nil {
			items = computed.Items
		}
		wc.WorkshopName = workshop.Name
		wc.PixKey = workshop.PixKey
		wc.SetItems(items)
		wc.UpdatedAt = now

		replaced, err := s.repo.ReplaceWorkshopItems(ctx, wc)
		if err != nil {
			return fmt.Errorf("replace workshop items: %w", err)
		}
		if !replaced {
			return apperror.NewStateConflict("fechamento_banca", "recompute", "alterado")
		}
		if err := s.reloadTotals(ctx, week); err != nil {
			return err
		}
		return s.audit.Record(ctx, AuditRecompute, closingID, wc)
	})
	s.metrics.ObserveTransition(AuditRecompute, err == nil)
	if err != nil {
		return nil, apperror.Classify(err)
	}

	s.emitWorkshopChange(ctx, events.TypeWorkshopClosingRecomputed, wc, now)
	return wc, nil
}

// FinalizeWeek closes an open week. Every non-cancelled workshop closing
// must be paid. Returns false when the week is not open or a workshop is
// still pending.
func (s *Service) FinalizeWeek(ctx context.Context, closingID id.ID) (bool, error) {
	var (
		applied bool
		week    *WeeklyClosing
	)
	now := s.now()

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		week, err = s.repo.GetForUpdate(ctx, closingID)
		if err != nil {
			return err
		}
		if week.Status != StatusOpen {
			return nil
		}
		week.Workshops, err = s.repo.ListWorkshopClosings(ctx, closingID)
		if err != nil {
			return fmt.Errorf("list workshop closings: %w", err)
		}
		if !week.AllPaid() {
			logger.Info(ctx, "weekly closing has unpaid workshops", "closing_id", closingID, "week", week.Week)
			return nil
		}
		applied, err = s.repo.MarkClosed(ctx, closingID, now)
		if err != nil || !applied {
			return err
		}
		week.Status = StatusClosed
		week.ClosedAt = &now
		return s.audit.Record(ctx, AuditFinalizeWeek, closingID, map[string]any{
			"week":   week.Week,
			"pieces": week.TotalPieces,
			"value":  types.FormatMoney(week.TotalValue),
		})
	})
	s.metrics.ObserveTransition(AuditFinalizeWeek, applied)
	if err != nil {
		return false, apperror.Classify(err)
	}
	if !applied {
		return false, nil
	}

	logger.Info(ctx, "weekly closing finalized", "closing_id", closingID, "week", week.Week)
	events.Emit(ctx, s.publisher, &events.ClosingFinalized{
		ClosingID:  closingID.String(),
		Week:       week.Week,
		TotalValue: types.FormatMoney(week.TotalValue),
		ClosedAt:   now,
	})
	return true, nil
}

func (s *Service) openWeekForUpdate(ctx context.Context, closingID id.ID, action string) (*WeeklyClosing, error) {
	week, err := s.repo.GetForUpdate(ctx, closingID)
	if err != nil {
		return nil, err
	}
	if week.Status != StatusOpen {
		return nil, apperror.NewStateConflict("fechamento", action, string(week.Status))
	}
	return week, nil
}

func (s *Service) emitWorkshopChange(ctx context.Context, eventType string, wc *WorkshopClosing, at time.Time) {
	events.Emit(ctx, s.publisher, &events.WorkshopClosingChanged{
		Type:        eventType,
		ClosingID:   wc.ClosingID.String(),
		WorkshopID:  wc.WorkshopID.String(),
		Workshop:    wc.WorkshopName,
		Status:      string(wc.Status),
		TotalPieces: wc.TotalPieces,
		TotalValue:  types.FormatMoney(wc.TotalValue),
		ChangedAt:   at,
	})
}
