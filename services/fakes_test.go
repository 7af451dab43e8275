package services

import (
	"context"
	"sort"
	"time"

	"github.com/tjjston/sealedleague/models"
	"github.com/tjjston/sealedleague/repositories"
)

// fixture is a shared in-memory backing store for the repository fakes. All
// fakes hand out the same object pointers, so a write through one repository
// is visible through every other, like rows in one database.
type fixture struct {
	tournaments map[int]*models.Tournament
	courts      map[int][]*models.Court
	stages      map[int][]*models.Stage
	items       map[int]*models.StageItem
	rounds      map[int]*models.Round
	matches     map[int]*models.Match

	nextID int
}

func newFixture() *fixture {
	return &fixture{
		tournaments: make(map[int]*models.Tournament),
		courts:      make(map[int][]*models.Court),
		stages:      make(map[int][]*models.Stage),
		items:       make(map[int]*models.StageItem),
		rounds:      make(map[int]*models.Round),
		matches:     make(map[int]*models.Match),
	}
}

func (f *fixture) id() int {
	f.nextID++
	return f.nextID
}

func (f *fixture) addTournament(startTime time.Time, durationMinutes, marginMinutes int) *models.Tournament {
	t := &models.Tournament{
		ID:              f.id(),
		Name:            "test tournament",
		StartTime:       startTime,
		DurationMinutes: durationMinutes,
		MarginMinutes:   marginMinutes,
	}
	f.tournaments[t.ID] = t
	return t
}

func (f *fixture) addCourt(tournamentID int, name string) *models.Court {
	c := &models.Court{ID: f.id(), TournamentID: tournamentID, Name: name}
	f.courts[tournamentID] = append(f.courts[tournamentID], c)
	return c
}

func (f *fixture) addStage(tournamentID int, name string) *models.Stage {
	s := &models.Stage{ID: f.id(), TournamentID: tournamentID, Name: name}
	f.stages[tournamentID] = append(f.stages[tournamentID], s)
	return s
}

func (f *fixture) addStageItem(stage *models.Stage, itemType models.StageItemType, teamCount int) *models.StageItem {
	item := &models.StageItem{
		ID:           f.id(),
		StageID:      stage.ID,
		TournamentID: stage.TournamentID,
		Name:         "test item",
		Type:         itemType,
		TeamCount:    teamCount,
	}
	for slot := 1; slot <= teamCount; slot++ {
		teamID := 1000 + slot
		item.Inputs = append(item.Inputs, &models.StageItemInput{
			ID:          f.id(),
			StageItemID: item.ID,
			Slot:        slot,
			TeamID:      &teamID,
		})
	}
	stage.StageItems = append(stage.StageItems, item)
	f.items[item.ID] = item
	return item
}

func (f *fixture) addRound(item *models.StageItem, name string) *models.Round {
	round := &models.Round{ID: f.id(), StageItemID: item.ID, Name: name}
	item.Rounds = append(item.Rounds, round)
	f.rounds[round.ID] = round
	return round
}

func (f *fixture) addMatch(round *models.Round, match *models.Match) *models.Match {
	match.ID = f.id()
	match.RoundID = round.ID
	round.Matches = append(round.Matches, match)
	f.matches[match.ID] = match
	return match
}

// tournamentOf walks the stage graph to find the owning tournament of a
// match, mirroring the repository's join.
func (f *fixture) tournamentOf(matchID int) int {
	round := f.rounds[f.matches[matchID].RoundID]
	return f.items[round.StageItemID].TournamentID
}

type fakeTournamentRepo struct{ f *fixture }

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	t, ok := r.f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

type fakeCourtRepo struct{ f *fixture }

func (r *fakeCourtRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Court, error) {
	return r.f.courts[tournamentID], nil
}

type fakeStageRepo struct{ f *fixture }

func (r *fakeStageRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Stage, error) {
	return r.f.stages[tournamentID], nil
}

type fakeStageItemRepo struct{ f *fixture }

func (r *fakeStageItemRepo) GetTournamentID(_ context.Context, id int) (int, error) {
	item, ok := r.f.items[id]
	if !ok {
		return 0, repositories.ErrStageItemNotFound
	}
	return item.TournamentID, nil
}

func (r *fakeStageItemRepo) GetWithGraph(_ context.Context, id int) (*models.StageItem, error) {
	item, ok := r.f.items[id]
	if !ok {
		return nil, repositories.ErrStageItemNotFound
	}
	return item, nil
}

type fakeRoundRepo struct{ f *fixture }

func (r *fakeRoundRepo) Create(_ context.Context, _ repositories.SQLExecutor, round *models.Round) error {
	round.ID = r.f.id()
	item := r.f.items[round.StageItemID]
	item.Rounds = append(item.Rounds, round)
	r.f.rounds[round.ID] = round
	return nil
}

func (r *fakeRoundRepo) GetByID(_ context.Context, id int) (*models.Round, error) {
	round, ok := r.f.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	return round, nil
}

type fakeMatchRepo struct{ f *fixture }

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	match.ID = r.f.id()
	round := r.f.rounds[match.RoundID]
	round.Matches = append(round.Matches, match)
	r.f.matches[match.ID] = match
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	match, ok := r.f.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return match, nil
}

func (r *fakeMatchRepo) UpdateInputs(_ context.Context, _ repositories.SQLExecutor, matchID int, input1ID, input2ID *int) error {
	match, ok := r.f.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Side1.InputID = input1ID
	match.Side2.InputID = input2ID
	return nil
}

func (r *fakeMatchRepo) UpdateScore(_ context.Context, _ repositories.SQLExecutor, matchID int, score1, score2 int) error {
	match, ok := r.f.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Score1 = score1
	match.Score2 = score2
	return nil
}

func (r *fakeMatchRepo) UpdateSchedule(_ context.Context, _ repositories.SQLExecutor, matchID int, courtID *int, startTime *time.Time, position *int) error {
	match, ok := r.f.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.CourtID = courtID
	match.StartTime = startTime
	match.PositionInSchedule = position
	return nil
}

func (r *fakeMatchRepo) ListScheduledByTournament(_ context.Context, tournamentID int) ([]*models.Match, error) {
	var matches []*models.Match
	for id, match := range r.f.matches {
		if match.CourtID == nil {
			continue
		}
		if r.f.tournamentOf(id) == tournamentID {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		pi, pj := *matches[i].PositionInSchedule, *matches[j].PositionInSchedule
		if pi != pj {
			return pi < pj
		}
		if *matches[i].CourtID != *matches[j].CourtID {
			return *matches[i].CourtID < *matches[j].CourtID
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// newTestRepos bundles one fixture behind every repository interface.
func newTestRepos(f *fixture) (
	repositories.TournamentRepository,
	repositories.CourtRepository,
	repositories.StageRepository,
	repositories.StageItemRepository,
	repositories.RoundRepository,
	repositories.MatchRepository,
) {
	return &fakeTournamentRepo{f}, &fakeCourtRepo{f}, &fakeStageRepo{f}, &fakeStageItemRepo{f}, &fakeRoundRepo{f}, &fakeMatchRepo{f}
}
