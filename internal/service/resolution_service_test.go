package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/pkg/database"
	"github.com/pickuphub/pickup-backend/pkg/economy"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("development", "error")
	os.Exit(m.Run())
}

// fakeEconomy 이코노미 사이드카 대역
type fakeEconomy struct {
	mu           sync.Mutex
	resolved     []int // winning teams passed to ResolvePredictions
	cancelled    []string
	resolveErr   error
	cancelStatus economy.RefundStatus
	cancelErr    error
}

func (f *fakeEconomy) ResolvePredictions(_ context.Context, _ string, winningTeam int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolved = append(f.resolved, winningTeam)
	return nil
}

func (f *fakeEconomy) CancelPredictions(_ context.Context, gameID string) (economy.RefundStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, gameID)
	if f.cancelStatus == "" {
		return economy.NothingToRefund, f.cancelErr
	}
	return f.cancelStatus, f.cancelErr
}

// resolutionFixture 통합 테스트용 DB 픽스처.
// TEST_DATABASE_URL이 없으면 테스트를 건너뛴다.
type resolutionFixture struct {
	t       *testing.T
	db      *database.DB
	svc     *ResolutionService
	economy *fakeEconomy

	queueID      string
	queueName    string
	rotationID   string
	categoryID   string // 빈 문자열이면 카테고리 없는 큐
	mapShortName string
}

type fixtureOpts struct {
	withCategory bool
	reward       int
	isRated      bool
	economyErr   error
}

func setupResolution(t *testing.T, opts fixtureOpts) *resolutionFixture {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	db, err := database.Connect(url)
	if err != nil {
		t.Skipf("Database not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ensureSchema(t, db)

	f := &resolutionFixture{t: t, db: db}
	suffix := uuid.NewString()[:8]

	// 로테이션 / 맵 / 큐
	if err := db.QueryRow(
		`INSERT INTO rotations (name) VALUES ($1) RETURNING id`,
		"rotation-"+suffix,
	).Scan(&f.rotationID); err != nil {
		t.Fatalf("Failed to insert rotation: %v", err)
	}

	f.mapShortName = "dx-" + suffix
	var mapID string
	if err := db.QueryRow(
		`INSERT INTO maps (full_name, short_name) VALUES ($1, $2) RETURNING id`,
		"Dangerous Crossing", f.mapShortName,
	).Scan(&mapID); err != nil {
		t.Fatalf("Failed to insert map: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO rotation_maps (rotation_id, map_id, ordinal, is_next, raffle_ticket_reward)
		 VALUES ($1, $2, 0, TRUE, $3)`,
		f.rotationID, mapID, opts.reward,
	); err != nil {
		t.Fatalf("Failed to insert rotation map: %v", err)
	}

	var categoryID *string
	if opts.withCategory {
		if err := db.QueryRow(
			`INSERT INTO categories (name) VALUES ($1) RETURNING id`,
			"category-"+suffix,
		).Scan(&f.categoryID); err != nil {
			t.Fatalf("Failed to insert category: %v", err)
		}
		categoryID = &f.categoryID
	}

	f.queueName = "queue-" + suffix
	if err := db.QueryRow(
		`INSERT INTO queues (name, rotation_id, category_id, is_rated)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		f.queueName, f.rotationID, categoryID, opts.isRated,
	).Scan(&f.queueID); err != nil {
		t.Fatalf("Failed to insert queue: %v", err)
	}

	f.economy = &fakeEconomy{resolveErr: opts.economyErr}

	gameRepo := repository.NewGameRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	finishedRepo := repository.NewFinishedGameRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	f.svc = NewResolutionService(
		db,
		gameRepo,
		playerRepo,
		queueRepo,
		finishedRepo,
		NewRatingService(),
		NewRewardService(rotationRepo, 5),
		NewWaitlistService(waitlistRepo, nil, time.Minute),
		f.economy,
		nil,
		30*time.Second,
	)

	return f
}

// ensureSchema 스키마가 없으면 마이그레이션 적용
func ensureSchema(t *testing.T, db *database.DB) {
	t.Helper()

	var reg *string
	if err := db.QueryRow(`SELECT to_regclass('players')::text`).Scan(&reg); err != nil {
		t.Fatalf("Failed to check schema: %v", err)
	}
	if reg != nil {
		return
	}

	sqlBytes, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}
	if _, err := db.Exec(string(sqlBytes)); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}
}

func (f *resolutionFixture) seedPlayer(id, name string, admin bool) {
	f.t.Helper()
	if _, err := f.db.Exec(
		`INSERT INTO players (id, name, is_admin) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_admin = EXCLUDED.is_admin`,
		id, name, admin,
	); err != nil {
		f.t.Fatalf("Failed to seed player %s: %v", id, err)
	}
}

// seedGame 2대2 게임 생성. 팀0 = ids[0:2], 팀1 = ids[2:4].
func (f *resolutionFixture) seedGame() (gameID string, playerIDs []string) {
	f.t.Helper()

	gameID = uuid.NewString()
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("%s-p%d", gameID[:8], i)
		f.seedPlayer(id, fmt.Sprintf("Player%d", i), false)
		playerIDs = append(playerIDs, id)
	}

	if _, err := f.db.Exec(
		`INSERT INTO games (id, queue_id, map_full_name, map_short_name) VALUES ($1, $2, $3, $4)`,
		gameID, f.queueID, "Dangerous Crossing", f.mapShortName,
	); err != nil {
		f.t.Fatalf("Failed to seed game: %v", err)
	}
	for i, id := range playerIDs {
		if _, err := f.db.Exec(
			`INSERT INTO game_players (game_id, player_id, team) VALUES ($1, $2, $3)`,
			gameID, id, i/2,
		); err != nil {
			f.t.Fatalf("Failed to seed game player: %v", err)
		}
	}
	return gameID, playerIDs
}

func (f *resolutionFixture) playerState(id string) (mu, sigma float64, tickets int) {
	f.t.Helper()
	err := f.db.QueryRow(
		`SELECT trueskill_mu, trueskill_sigma, raffle_tickets FROM players WHERE id = $1`, id,
	).Scan(&mu, &sigma, &tickets)
	if err != nil {
		f.t.Fatalf("Failed to read player %s: %v", id, err)
	}
	return mu, sigma, tickets
}

func (f *resolutionFixture) countRows(query string, args ...interface{}) int {
	f.t.Helper()
	var n int
	if err := f.db.QueryRow(query, args...).Scan(&n); err != nil {
		f.t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

func TestResolutionService_Finalize(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, players := f.seedGame()

	// 팀1 소속 플레이어가 패배를 신고하면 팀0이 승리
	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID:    gameID,
		ActorID:   players[2],
		Outcome:   models.OutcomeLoss,
		ChannelID: "channel-1",
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if result.FinishedGame.WinningTeam != 0 {
		t.Errorf("WinningTeam = %d, want 0", result.FinishedGame.WinningTeam)
	}
	if result.FinishedGame.QueueName != f.queueName {
		t.Errorf("QueueName = %q, want %q", result.FinishedGame.QueueName, f.queueName)
	}
	if result.Reward != 10 {
		t.Errorf("Reward = %d, want 10", result.Reward)
	}
	if len(result.Players) != 4 {
		t.Fatalf("Players = %d, want 4", len(result.Players))
	}

	// 승자는 mu 상승, 패자는 mu 하락, 모두 sigma 감소
	for _, snap := range result.Players {
		if snap.Team == 0 && snap.MuAfter <= snap.MuBefore {
			t.Errorf("Winner %s mu %.3f -> %.3f, expected increase", snap.PlayerID, snap.MuBefore, snap.MuAfter)
		}
		if snap.Team == 1 && snap.MuAfter >= snap.MuBefore {
			t.Errorf("Loser %s mu %.3f -> %.3f, expected decrease", snap.PlayerID, snap.MuBefore, snap.MuAfter)
		}
		if snap.SigmaAfter >= snap.SigmaBefore {
			t.Errorf("Player %s sigma %.3f -> %.3f, expected decrease", snap.PlayerID, snap.SigmaBefore, snap.SigmaAfter)
		}
	}

	// 전역 프로필과 티켓이 커밋됐는지
	mu, _, tickets := f.playerState(players[0])
	if mu <= 25.0 {
		t.Errorf("Winner global mu = %.3f, expected above 25.0", mu)
	}
	if tickets != 10 {
		t.Errorf("Raffle tickets = %d, want 10", tickets)
	}

	if n := f.countRows(`SELECT COUNT(*) FROM games WHERE id = $1 AND is_finished`, gameID); n != 1 {
		t.Errorf("Finished games flag count = %d, want 1", n)
	}
	if n := f.countRows(`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID); n != 0 {
		t.Errorf("Remaining game_players = %d, want 0", n)
	}
	// 재입장 대기는 now + 30s 근처에 잡힌다
	var endAt time.Time
	if err := f.db.QueryRow(
		`SELECT end_waitlist_at FROM queue_waitlists WHERE finished_game_id = $1`, result.FinishedGame.ID,
	).Scan(&endAt); err != nil {
		t.Fatalf("Waitlist entry missing: %v", err)
	}
	if until := time.Until(endAt); until < 20*time.Second || until > 40*time.Second {
		t.Errorf("Waitlist deadline %v from now, want about 30s", until)
	}

	if len(f.economy.resolved) != 1 || f.economy.resolved[0] != 0 {
		t.Errorf("Economy resolved calls = %v, want [0]", f.economy.resolved)
	}
	if result.EconomyWarning != "" {
		t.Errorf("Unexpected economy warning: %s", result.EconomyWarning)
	}
}

func TestResolutionService_Finalize_Solo(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})

	gameID := uuid.NewString()
	playerID := gameID[:8] + "-solo"
	f.seedPlayer(playerID, "Solo", false)
	if _, err := f.db.Exec(
		`INSERT INTO games (id, queue_id, map_full_name, map_short_name) VALUES ($1, $2, $3, $4)`,
		gameID, f.queueID, "Dangerous Crossing", f.mapShortName,
	); err != nil {
		t.Fatalf("Failed to seed game: %v", err)
	}
	if _, err := f.db.Exec(
		`INSERT INTO game_players (game_id, player_id, team) VALUES ($1, $2, 0)`,
		gameID, playerID,
	); err != nil {
		t.Fatalf("Failed to seed game player: %v", err)
	}

	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: playerID, Outcome: models.OutcomeWin,
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// 혼자 하는 게임은 비교 정보가 없으므로 레이팅이 움직이지 않는다
	mu, sigma, tickets := f.playerState(playerID)
	if mu != 25.0 {
		t.Errorf("Solo mu = %.3f, want unchanged 25.0", mu)
	}
	if sigma < 8.333 || sigma > 8.334 {
		t.Errorf("Solo sigma = %.4f, want unchanged default", sigma)
	}
	if tickets != 10 {
		t.Errorf("Tickets = %d, want 10 (reward still credited)", tickets)
	}
	if result.FinishedGame.WinningTeam != 0 {
		t.Errorf("WinningTeam = %d, want 0", result.FinishedGame.WinningTeam)
	}
}

func TestResolutionService_Finalize_Twice(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, players := f.seedGame()

	first, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[0], Outcome: models.OutcomeWin,
	})
	if err != nil {
		t.Fatalf("First finalize failed: %v", err)
	}

	_, err = f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[2], Outcome: models.OutcomeWin,
	})
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("Second finalize error = %v, want ErrAlreadyResolved", err)
	}

	// 두 번째 호출은 아무것도 바꾸지 못한다
	if n := f.countRows(`SELECT COUNT(*) FROM finished_games WHERE game_id = $1`, gameID); n != 1 {
		t.Errorf("finished_games rows = %d, want 1", n)
	}
	_, _, tickets := f.playerState(players[0])
	if tickets != first.Reward {
		t.Errorf("Tickets = %d, want %d (no double credit)", tickets, first.Reward)
	}
}

func TestResolutionService_Finalize_Concurrent(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, players := f.seedGame()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Finalize(context.Background(), FinalizeRequest{
				GameID:  gameID,
				ActorID: players[i%4],
				Outcome: models.OutcomeWin,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyResolved):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Succeeded finalizes = %d, want exactly 1", succeeded)
	}
	if n := f.countRows(`SELECT COUNT(*) FROM finished_games WHERE game_id = $1`, gameID); n != 1 {
		t.Errorf("finished_games rows = %d, want 1", n)
	}
}

func TestResolutionService_Finalize_CategoryQueue(t *testing.T) {
	f := setupResolution(t, fixtureOpts{withCategory: true, reward: 10, isRated: true})
	gameID, players := f.seedGame()

	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[0], Outcome: models.OutcomeWin,
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.FinishedGame.CategoryName == nil {
		t.Fatal("CategoryName is nil, want category name")
	}

	// 카테고리 프로필이 시드되고 rank = mu - 3*sigma로 유지된다
	for _, id := range players {
		var mu, sigma, rank float64
		err := f.db.QueryRow(
			`SELECT mu, sigma, rank FROM player_category_skills WHERE player_id = $1 AND category_id = $2`,
			id, f.categoryID,
		).Scan(&mu, &sigma, &rank)
		if err != nil {
			t.Fatalf("Category skill missing for %s: %v", id, err)
		}
		if want := models.SkillRank(mu, sigma); rank != want {
			t.Errorf("Rank = %.3f, want %.3f", rank, want)
		}

		// 전역 프로필도 같이 움직인다
		globalMu, _, _ := f.playerState(id)
		if globalMu == 25.0 {
			t.Errorf("Global mu for %s unchanged, expected update alongside category", id)
		}
	}
}

func TestResolutionService_Finalize_DefaultReward(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 0, isRated: true})
	gameID, players := f.seedGame()

	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[0], Outcome: models.OutcomeTie,
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.Reward != 5 {
		t.Errorf("Reward = %d, want default 5", result.Reward)
	}
	if result.FinishedGame.WinningTeam != models.WinningTeamTie {
		t.Errorf("WinningTeam = %d, want %d", result.FinishedGame.WinningTeam, models.WinningTeamTie)
	}

	// 체인이 끊겨도 (게임 도중 맵이 로테이션에서 빠진 경우) 기본값으로 간다
	gameID2, players2 := f.seedGame()
	if _, err := f.db.Exec(
		`UPDATE games SET map_short_name = 'gone' WHERE id = $1`, gameID2,
	); err != nil {
		t.Fatalf("Failed to break reward chain: %v", err)
	}
	result, err = f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID2, ActorID: players2[0], Outcome: models.OutcomeWin,
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.Reward != 5 {
		t.Errorf("Broken chain reward = %d, want default 5", result.Reward)
	}
}

func TestResolutionService_Finalize_Authorization(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, _ := f.seedGame()

	outsider := "outsider-" + gameID[:8]
	f.seedPlayer(outsider, "Outsider", false)
	admin := "admin-" + gameID[:8]
	f.seedPlayer(admin, "Admin", true)

	// 참가자도 관리자도 아니면 거부
	_, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: outsider, Outcome: models.OutcomeWin,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Outsider finalize error = %v, want ErrUnauthorized", err)
	}

	// 관리자는 기준 팀 없이 승패를 신고할 수 없다
	_, err = f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: admin, Outcome: models.OutcomeWin,
	})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("Admin finalize without team error = %v, want ErrInvalidOutcome", err)
	}

	// 기준 팀을 주면 관리자 대리 종료 허용
	team := 1
	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: admin, Outcome: models.OutcomeWin, ActorTeam: &team,
	})
	if err != nil {
		t.Fatalf("Admin finalize failed: %v", err)
	}
	if result.FinishedGame.WinningTeam != 1 {
		t.Errorf("WinningTeam = %d, want 1", result.FinishedGame.WinningTeam)
	}
}

func TestResolutionService_Finalize_EconomyFailure(t *testing.T) {
	f := setupResolution(t, fixtureOpts{
		reward:     10,
		isRated:    true,
		economyErr: errors.New("economy unreachable"),
	})
	gameID, players := f.seedGame()

	// 이코노미 실패는 해소를 막지 못하고 경고로만 남는다
	result, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[0], Outcome: models.OutcomeWin,
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.EconomyWarning == "" {
		t.Error("Expected economy warning, got none")
	}
	if n := f.countRows(`SELECT COUNT(*) FROM finished_games WHERE game_id = $1`, gameID); n != 1 {
		t.Errorf("finished_games rows = %d, want 1", n)
	}
}

func TestResolutionService_Cancel(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, players := f.seedGame()

	admin := "admin-" + gameID[:8]
	f.seedPlayer(admin, "Admin", true)

	// 참가자라도 관리자가 아니면 취소 불가
	_, err := f.svc.Cancel(context.Background(), gameID, players[0])
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Non-admin cancel error = %v, want ErrUnauthorized", err)
	}

	f.economy.cancelStatus = economy.Refunded
	result, err := f.svc.Cancel(context.Background(), gameID, admin)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if result.QueueName != f.queueName {
		t.Errorf("QueueName = %q, want %q", result.QueueName, f.queueName)
	}
	if result.Predictions != economy.Refunded {
		t.Errorf("Predictions = %q, want %q", result.Predictions, economy.Refunded)
	}

	// 기록 없이 흔적이 사라진다
	if n := f.countRows(`SELECT COUNT(*) FROM games WHERE id = $1`, gameID); n != 0 {
		t.Errorf("games rows = %d, want 0", n)
	}
	if n := f.countRows(`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID); n != 0 {
		t.Errorf("game_players rows = %d, want 0", n)
	}
	if n := f.countRows(`SELECT COUNT(*) FROM finished_games WHERE game_id = $1`, gameID); n != 0 {
		t.Errorf("finished_games rows = %d, want 0", n)
	}

	// 레이팅과 티켓은 건드리지 않는다
	mu, _, tickets := f.playerState(players[0])
	if mu != 25.0 || tickets != 0 {
		t.Errorf("Player state changed by cancel: mu=%.3f tickets=%d", mu, tickets)
	}

	// 이미 해소된 게임은 취소할 수 없다
	gameID2, players2 := f.seedGame()
	if _, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID2, ActorID: players2[0], Outcome: models.OutcomeWin,
	}); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	_, err = f.svc.Cancel(context.Background(), gameID2, admin)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("Cancel after finalize error = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolutionService_Finalize_InvalidOutcome(t *testing.T) {
	f := setupResolution(t, fixtureOpts{reward: 10, isRated: true})
	gameID, players := f.seedGame()

	_, err := f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: gameID, ActorID: players[0], Outcome: "victory",
	})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("Finalize error = %v, want ErrInvalidOutcome", err)
	}

	_, err = f.svc.Finalize(context.Background(), FinalizeRequest{
		GameID: uuid.NewString(), ActorID: players[0], Outcome: models.OutcomeWin,
	})
	if !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("Finalize unknown game error = %v, want ErrGameNotFound", err)
	}
}
