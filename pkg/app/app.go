package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zurustar/mission-vm/pkg/campaign"
	"github.com/zurustar/mission-vm/pkg/cli"
	"github.com/zurustar/mission-vm/pkg/config"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/metrics"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/scoreboard"
	"github.com/zurustar/mission-vm/pkg/session"
	"github.com/zurustar/mission-vm/pkg/window"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *config.Config
	log      *slog.Logger
	registry *campaign.Registry
	campaign *campaign.Campaign
	missions []*mission.Mission
	metrics  *metrics.Collector
	board    *scoreboard.Board
	embedFS  fs.FS

	stdin  io.Reader
	stdout io.Writer
	logOut io.Writer
}

// Option はApplicationの設定
type Option func(*Application)

// WithIO 標準入出力を差し替える（テスト用）
func WithIO(stdin io.Reader, stdout io.Writer) Option {
	return func(app *Application) {
		app.stdin = stdin
		app.stdout = stdout
		app.logOut = stdout
	}
}

// New Applicationを作成
func New(embedFS fs.FS, opts ...Option) *Application {
	app := &Application{
		embedFS: embedFS,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		logOut:  os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	cfg, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = cfg

	if cfg.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := logger.InitLoggerWithWriter(app.logOut, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()
	app.log.Info("Application started")

	// 3. キャンペーンとミッションの読み込み
	if err := app.loadCampaign(); err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	// 4. メトリクスとスコアボード
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.metrics = metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		done := app.metrics.Serve(ctx, cfg.MetricsAddr, app.log)
		defer func() {
			stop()
			<-done
		}()
	}

	if cfg.Scoreboard != "" {
		board, err := scoreboard.Open(cfg.Scoreboard, app.log)
		if err != nil {
			return err
		}
		app.board = board
		defer board.Close()
	}

	// 5. ミッションの実行
	if cfg.Headless {
		err = app.runHeadless(ctx)
	} else {
		err = app.runWindow()
	}
	if err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

// loadCampaign キャンペーンを選択してミッションを読み込む
func (app *Application) loadCampaign() error {
	app.registry = campaign.NewRegistry(app.embedFS)

	// 外部キャンペーンの読み込み（指定されている場合）
	if app.config.CampaignPath != "" {
		if err := app.registry.LoadExternal(app.config.CampaignPath); err != nil {
			return err
		}
	}

	c, needsSelection, err := app.registry.Select()
	if err != nil {
		return err
	}
	if needsSelection {
		// 複数のembedキャンペーンがある場合は先頭を使用
		available := app.registry.Available()
		c = &available[0]
		app.log.Info("Multiple campaigns available, using the first", "count", len(available), "campaign", c.DisplayName())
	}
	app.campaign = c

	missions, _, err := c.LoadMissions(app.log)
	if err != nil {
		return err
	}
	app.missions = missions
	app.log.Info("Campaign loaded", "campaign", c.DisplayName(), "missions", len(missions))
	return nil
}

// selectMission ミッションを選択（--missionまたはマニフェストで決まらない場合はnil）
func (app *Application) selectMission() (*mission.Mission, bool, error) {
	return app.campaign.SelectMission(app.missions, app.config.Mission)
}

// newSession ミッションのセッションを作成し、ログにmission/tickを付与する
func (app *Application) newSession(m *mission.Mission) (*session.Session, error) {
	s, err := session.New(m,
		session.WithLogger(app.log),
		session.WithObserver(app.metrics),
		session.WithCampaign(app.campaign.DisplayName()),
	)
	if err != nil {
		return nil, err
	}
	logger.SetContextProvider(s.LogAttrs)
	return s, nil
}

// finishSession セッション終了時の後処理（スナップショットのダンプとスコア記録）
func (app *Application) finishSession(s *session.Session, outcome scoreboard.Outcome) {
	logger.SetContextProvider(nil)

	if app.log.Enabled(context.Background(), slog.LevelDebug) {
		app.dumpSnapshot(s)
	}

	if app.board == nil {
		return
	}
	rec := s.Record(outcome)
	if err := app.board.Record(context.Background(), rec); err != nil {
		app.log.Error("Failed to record session", "error", err)
		return
	}
	if best, ok, err := app.board.Best(context.Background(), rec.Campaign, rec.MissionID); err == nil && ok {
		app.log.Info("Best score", "mission", rec.MissionID, "score", best.Score)
	}
}

// dumpSnapshot エンジンの状態をデバッグログに出力
func (app *Application) dumpSnapshot(s *session.Session) {
	e := s.Engine()
	if !e.Running() {
		return
	}
	data, err := e.Snapshot()
	if err != nil {
		app.log.Debug("Snapshot unavailable", "error", err)
		return
	}
	app.log.Debug("Final engine state", "bytes", len(data), "threads", e.ActiveThreads(), "tick", e.Tick())
}

// runHeadless ヘッドレスモードで実行
func (app *Application) runHeadless(ctx context.Context) error {
	m, needsSelection, err := app.selectMission()
	if err != nil {
		return err
	}
	if needsSelection {
		m, err = window.RunHeadless(app.missions, app.config.Timeout, app.stdin, app.stdout)
		if err != nil {
			return fmt.Errorf("failed to select mission: %w", err)
		}
	}

	s, err := app.newSession(m)
	if err != nil {
		return err
	}

	outcome := s.Run(ctx, session.RunOptions{
		TickInterval: app.config.TickInterval(),
		MaxTicks:     app.config.MaxTicks,
		Timeout:      app.config.Timeout,
	})
	// スナップショットは停止前に取る
	app.finishSession(s, outcome)
	s.Stop()

	fmt.Fprintf(app.stdout, "Mission %d finished: %s (score %d / %d, %d ticks)\n",
		m.ID, outcome, s.World().Score(), s.World().TargetScore(), s.Tick())
	return nil
}

// runWindow GUIモードで実行
func (app *Application) runWindow() error {
	m, needsSelection, err := app.selectMission()
	if err != nil {
		return err
	}

	opts := window.RunOptions{
		Title:        fmt.Sprintf("mission-vm - %s", app.campaign.DisplayName()),
		Timeout:      app.config.Timeout,
		TPS:          app.config.TPS,
		MaxTicks:     app.config.MaxTicks,
		HasSelection: len(app.missions) > 1,
		OnSelected:   app.newSession,
		OnSessionEnd: app.finishSession,
	}
	if !needsSelection {
		s, err := app.newSession(m)
		if err != nil {
			return err
		}
		opts.Session = s
	}

	start := time.Now()
	if _, err := window.Run(app.missions, opts); err != nil {
		return err
	}
	app.log.Info("Window closed", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
