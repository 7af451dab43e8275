package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tjjston/sealedleague/live"
	"github.com/tjjston/sealedleague/models"
	"github.com/tjjston/sealedleague/repositories"
)

// SchedulingService assigns matches to courts and wall-clock start times.
// Bracket topology and the schedule are independent: the engine only reads
// durations and ordering, never winner/loser wiring.
type SchedulingService interface {
	// ScheduleAllUnscheduled walks every stage of the tournament and packs
	// all matches that have no start time yet into per-round batches of
	// court-count matches. Already-scheduled matches are left untouched.
	ScheduleAllUnscheduled(ctx context.Context, tournamentID int) error

	// RescheduleMatch moves one scheduled match to a new court and position,
	// then resequences the affected court(s) from the tournament start time.
	RescheduleMatch(ctx context.Context, tournamentID, matchID, newCourtID, newPosition int) error

	// RenormalizeSchedule recomputes every scheduled match's start time from
	// the canonical (position, court, match id) ordering and renumbers
	// positions densely. Idempotent.
	RenormalizeSchedule(ctx context.Context, tournamentID int) error
}

type schedulingService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	courtRepo      repositories.CourtRepository
	stageRepo      repositories.StageRepository
	stageItemRepo  repositories.StageItemRepository
	matchRepo      repositories.MatchRepository
	locker         *TournamentLocker

	hub *live.Hub // optional
}

func NewSchedulingService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	courtRepo repositories.CourtRepository,
	stageRepo repositories.StageRepository,
	stageItemRepo repositories.StageItemRepository,
	matchRepo repositories.MatchRepository,
	locker *TournamentLocker,
	hub *live.Hub,
) SchedulingService {
	return &schedulingService{
		db:             db,
		tournamentRepo: tournamentRepo,
		courtRepo:      courtRepo,
		stageRepo:      stageRepo,
		stageItemRepo:  stageItemRepo,
		matchRepo:      matchRepo,
		locker:         locker,
		hub:            hub,
	}
}

// scheduleAssignment is one pending write of court/time/position.
type scheduleAssignment struct {
	match     *models.Match
	courtID   int
	startTime time.Time
	position  int
}

func (s *schedulingService) ScheduleAllUnscheduled(ctx context.Context, tournamentID int) error {
	defer s.locker.Lock(tournamentID)()

	tournament, courts, stages, err := s.loadTournamentContext(ctx, tournamentID)
	if err != nil {
		return err
	}
	if len(courts) == 0 {
		return fmt.Errorf("%w: tournament %d", ErrNoCourtsAvailable, tournamentID)
	}

	// One timeline cursor per tournament: the cursor carries from stage item
	// to stage item, and the next stage starts no earlier than the latest
	// end among the previous stage's items.
	cursorTime := tournament.StartTime
	cursorPos := 0
	var assignments []scheduleAssignment

	for _, stage := range stages {
		stageEndTime := cursorTime
		stageEndPos := cursorPos
		for _, item := range stage.StageItems {
			graph, gErr := s.stageItemRepo.GetWithGraph(ctx, item.ID)
			if gErr != nil {
				return gErr
			}
			itemTime, itemPos, itemAssignments := planStageItem(tournament, courts, graph, cursorTime, cursorPos)
			assignments = append(assignments, itemAssignments...)
			cursorTime, cursorPos = itemTime, itemPos
			if itemTime.After(stageEndTime) {
				stageEndTime = itemTime
			}
			if itemPos > stageEndPos {
				stageEndPos = itemPos
			}
		}
		cursorTime, cursorPos = stageEndTime, stageEndPos
	}

	if err := s.persistAssignments(ctx, assignments); err != nil {
		return err
	}
	log.Printf("Scheduled %d matches for tournament %d across %d courts",
		len(assignments), tournamentID, len(courts))
	s.broadcastScheduleUpdated(tournamentID)
	return nil
}

// planStageItem batches a stage item's unscheduled matches round by round.
// Each batch holds at most one match per court and shares one position; a
// batch starts when the longest match of the previous batch ends.
func planStageItem(
	tournament *models.Tournament,
	courts []*models.Court,
	item *models.StageItem,
	startTime time.Time,
	startPos int,
) (time.Time, int, []scheduleAssignment) {
	cursorTime := startTime
	cursorPos := startPos
	var assignments []scheduleAssignment

	for _, round := range item.Rounds {
		var pending []*models.Match
		for _, match := range round.Matches {
			if match.StartTime != nil || match.PositionInSchedule != nil {
				continue
			}
			pending = append(pending, match)
		}
		for len(pending) > 0 {
			batch := pending
			if len(batch) > len(courts) {
				batch = batch[:len(courts)]
			}
			pending = pending[len(batch):]

			batchEnd := cursorTime
			for i, match := range batch {
				assignments = append(assignments, scheduleAssignment{
					match:     match,
					courtID:   courts[i].ID,
					startTime: cursorTime,
					position:  cursorPos,
				})
				if end := cursorTime.Add(match.SlotDuration(tournament)); end.After(batchEnd) {
					batchEnd = end
				}
			}
			cursorTime = batchEnd
			cursorPos++
		}
	}
	return cursorTime, cursorPos, assignments
}

func (s *schedulingService) RescheduleMatch(ctx context.Context, tournamentID, matchID, newCourtID, newPosition int) error {
	defer s.locker.Lock(tournamentID)()

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	courts, err := s.courtRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	courtKnown := false
	for _, court := range courts {
		if court.ID == newCourtID {
			courtKnown = true
			break
		}
	}
	if !courtKnown {
		return fmt.Errorf("%w: court %d, tournament %d", ErrCourtNotInTournament, newCourtID, tournamentID)
	}

	moved, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if !moved.IsScheduled() || moved.PositionInSchedule == nil {
		return fmt.Errorf("%w: match %d", ErrMatchNotScheduled, matchID)
	}
	oldCourtID := *moved.CourtID
	oldPosition := *moved.PositionInSchedule
	if oldCourtID == newCourtID && oldPosition == newPosition {
		return nil
	}

	scheduled, err := s.matchRepo.ListScheduledByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	// The moved match is dropped into the target court's ordering at a
	// half-offset from the requested position, so it sorts ahead of the
	// match currently holding that position (or behind it, when sliding a
	// match later on its own court). Integer positions are restored by the
	// per-court resequencing below.
	frac := float64(newPosition) - 0.5
	if oldCourtID == newCourtID && newPosition > oldPosition {
		frac = float64(newPosition) + 0.5
	}

	fracOf := func(m *models.Match) float64 {
		if m.ID == matchID {
			return frac
		}
		return float64(*m.PositionInSchedule)
	}
	courtOf := func(m *models.Match) int {
		if m.ID == matchID {
			return newCourtID
		}
		return *m.CourtID
	}

	courtIDs := []int{oldCourtID}
	if newCourtID != oldCourtID {
		courtIDs = append(courtIDs, newCourtID)
	}

	var assignments []scheduleAssignment
	for _, courtID := range courtIDs {
		var lane []*models.Match
		for _, m := range scheduled {
			if m.PositionInSchedule == nil {
				continue
			}
			if courtOf(m) == courtID {
				lane = append(lane, m)
			}
		}
		sort.SliceStable(lane, func(i, j int) bool {
			fi, fj := fracOf(lane[i]), fracOf(lane[j])
			if fi != fj {
				return fi < fj
			}
			return lane[i].ID < lane[j].ID
		})
		cursor := tournament.StartTime
		for pos, m := range lane {
			assignments = append(assignments, scheduleAssignment{
				match:     m,
				courtID:   courtID,
				startTime: cursor,
				position:  pos,
			})
			cursor = cursor.Add(m.SlotDuration(tournament))
		}
	}

	if err := s.persistChangedAssignments(ctx, assignments); err != nil {
		return err
	}
	log.Printf("Rescheduled match %d to court %d position %d in tournament %d",
		matchID, newCourtID, newPosition, tournamentID)
	s.broadcastScheduleUpdated(tournamentID)
	return nil
}

func (s *schedulingService) RenormalizeSchedule(ctx context.Context, tournamentID int) error {
	defer s.locker.Lock(tournamentID)()

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	scheduled, err := s.matchRepo.ListScheduledByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	groups := make(map[int][]*models.Match)
	var positions []int
	for _, m := range scheduled {
		if m.PositionInSchedule == nil {
			continue
		}
		pos := *m.PositionInSchedule
		if _, ok := groups[pos]; !ok {
			positions = append(positions, pos)
		}
		groups[pos] = append(groups[pos], m)
	}
	sort.Ints(positions)

	// Matches sharing a position start simultaneously whatever their court;
	// the slot lasts as long as its longest match. Positions are renumbered
	// densely so deletions leave no holes.
	cursor := tournament.StartTime
	var assignments []scheduleAssignment
	for dense, pos := range positions {
		group := groups[pos]
		sort.Slice(group, func(i, j int) bool {
			if *group[i].CourtID != *group[j].CourtID {
				return *group[i].CourtID < *group[j].CourtID
			}
			return group[i].ID < group[j].ID
		})
		slot := time.Duration(0)
		for _, m := range group {
			assignments = append(assignments, scheduleAssignment{
				match:     m,
				courtID:   *m.CourtID,
				startTime: cursor,
				position:  dense,
			})
			if d := m.SlotDuration(tournament); d > slot {
				slot = d
			}
		}
		cursor = cursor.Add(slot)
	}

	if err := s.persistChangedAssignments(ctx, assignments); err != nil {
		return err
	}
	s.broadcastScheduleUpdated(tournamentID)
	return nil
}

// loadTournamentContext fetches the tournament, its courts, and its stages
// concurrently.
func (s *schedulingService) loadTournamentContext(ctx context.Context, tournamentID int) (*models.Tournament, []*models.Court, []*models.Stage, error) {
	var (
		tournament *models.Tournament
		courts     []*models.Court
		stages     []*models.Stage
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		courts, err = s.courtRepo.ListByTournament(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		stages, err = s.stageRepo.ListByTournament(gCtx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return tournament, courts, stages, nil
}

func (s *schedulingService) persistAssignments(ctx context.Context, assignments []scheduleAssignment) error {
	return s.persist(ctx, assignments, false)
}

// persistChangedAssignments skips writes whose court, time, and position all
// already match, which is what makes renormalization idempotent at the store.
func (s *schedulingService) persistChangedAssignments(ctx context.Context, assignments []scheduleAssignment) error {
	return s.persist(ctx, assignments, true)
}

func (s *schedulingService) persist(ctx context.Context, assignments []scheduleAssignment, skipUnchanged bool) (err error) {
	var exec repositories.SQLExecutor
	if s.db != nil {
		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}
		exec = tx
		defer func() {
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit schedule update: %w", cErr)
			}
		}()
	}

	for _, a := range assignments {
		m := a.match
		if skipUnchanged &&
			m.CourtID != nil && *m.CourtID == a.courtID &&
			m.StartTime != nil && m.StartTime.Equal(a.startTime) &&
			m.PositionInSchedule != nil && *m.PositionInSchedule == a.position {
			continue
		}
		courtID := a.courtID
		startTime := a.startTime
		position := a.position
		if uErr := s.matchRepo.UpdateSchedule(ctx, exec, m.ID, &courtID, &startTime, &position); uErr != nil {
			return uErr
		}
		m.CourtID = &courtID
		m.StartTime = &startTime
		m.PositionInSchedule = &position
	}
	return nil
}

func (s *schedulingService) broadcastScheduleUpdated(tournamentID int) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(fmt.Sprintf("tournament_%d", tournamentID), live.Message{
		Type:    live.EventScheduleUpdated,
		Payload: map[string]int{"tournament_id": tournamentID},
	})
}
