package window

import (
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/scoreboard"
	"github.com/zurustar/mission-vm/pkg/session"
	"github.com/zurustar/mission-vm/pkg/vm"
	"golang.org/x/image/font/basicfont"
)

const (
	screenWidth  = 1024
	screenHeight = 768

	// 1ブロックの表示サイズ（ピクセル）
	blockSize = 16

	// 移動速度（ブロック/秒）
	walkSpeed  = 6.0
	driveSpeed = 14.0

	// 乗車できる距離（ブロック）
	enterRadius = 1.5
)

var (
	backgroundColor   = color.RGBA{0x20, 0x24, 0x28, 0xFF}
	textColor         = color.White
	selectedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	playerColor       = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	vehicleColor      = color.RGBA{0x30, 0x90, 0xE0, 0xFF}
	wreckColor        = color.RGBA{0x60, 0x30, 0x20, 0xFF}
	pedColor          = color.RGBA{0xE0, 0xA0, 0x40, 0xFF}
	doorClosedColor   = color.RGBA{0xA0, 0x20, 0x20, 0xFF}
	doorOpenColor     = color.RGBA{0x20, 0xA0, 0x20, 0xFF}
	triggerColor      = color.RGBA{0xFF, 0xFF, 0x00, 0x80}
	triggerOffColor   = color.RGBA{0x80, 0x80, 0x80, 0x60}
	defaultFace       = text.NewGoXFace(basicfont.Face7x13)
)

// Mode はウィンドウの表示モードを表す
type Mode int

const (
	ModeSelection Mode = iota // ミッション選択画面
	ModePlay                  // ミッション実行中
)

// Input はキー入力の取得を抽象化する（テストで差し替える）
type Input interface {
	IsKeyJustPressed(key ebiten.Key) bool
	IsKeyPressed(key ebiten.Key) bool
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	mode          Mode               // 現在のモード
	missions      []*mission.Mission // 選択可能なミッション一覧
	selectedIndex int                // 選択中のミッションのインデックス
	selected      *mission.Mission   // 選択されたミッション
	timeout       time.Duration      // タイムアウト時間
	startTime     time.Time          // 開始時刻
	tickInterval  time.Duration      // 1フレームあたりのゲーム時間
	maxTicks      uint64             // 最大ティック数（0は無制限）
	input         Input

	session  *session.Session
	finished bool               // セッションがアイドル状態になった
	outcome  scoreboard.Outcome // 終了理由

	// ミッション選択時に呼ばれ、実行するセッションを返す
	onMissionSelected func(m *mission.Mission) (*session.Session, error)
	// セッション終了時に1回だけ呼ばれる
	onSessionEnd    func(s *session.Session, outcome scoreboard.Outcome)
	transitionError error

	hasSelection bool // 選択画面に戻れるかどうか（複数ミッション時true）

	mu sync.RWMutex
}

// NewGame Gameを作成
func NewGame(mode Mode, missions []*mission.Mission, timeout time.Duration) *Game {
	return &Game{
		mode:         mode,
		missions:     missions,
		timeout:      timeout,
		startTime:    time.Now(),
		tickInterval: time.Second / time.Duration(ebiten.DefaultTPS),
		input:        ebitenInput{},
	}
}

// SetInput 入力ソースを設定
func (g *Game) SetInput(in Input) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.input = in
}

// SetTickInterval 1フレームあたりのゲーム時間を設定
func (g *Game) SetTickInterval(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d > 0 {
		g.tickInterval = d
	}
}

// SetMaxTicks 最大ティック数を設定（0は無制限）
func (g *Game) SetMaxTicks(n uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxTicks = n
}

// SetSession 実行するセッションを設定してプレイモードにする
func (g *Game) SetSession(s *session.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
	g.finished = false
	g.outcome = ""
	if s != nil {
		g.selected = s.Mission()
		g.mode = ModePlay
	}
}

// Session 実行中のセッションを返す
func (g *Game) Session() *session.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// SetOnMissionSelected ミッション選択時のコールバックを設定
func (g *Game) SetOnMissionSelected(callback func(m *mission.Mission) (*session.Session, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onMissionSelected = callback
}

// SetOnSessionEnd セッション終了時のコールバックを設定
func (g *Game) SetOnSessionEnd(callback func(s *session.Session, outcome scoreboard.Outcome)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSessionEnd = callback
}

// SetHasSelection 選択画面に戻れるかどうかを設定
// trueの場合、プレイ中のEscで選択画面に戻る
// falseの場合、プレイ中のEscでプログラムを終了する
func (g *Game) SetHasSelection(has bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasSelection = has
}

// GetTransitionError モード遷移時のエラーを返す
func (g *Game) GetTransitionError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transitionError
}

// GetSelectedMission 選択されたミッションを取得
func (g *Game) GetSelectedMission() *mission.Mission {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selected
}

// Outcome 最後に終了したセッションの終了理由
func (g *Game) Outcome() scoreboard.Outcome {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.outcome
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// タイムアウトチェック
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		g.endSession(scoreboard.OutcomeTimeout)
		return ebiten.Termination
	}

	switch g.mode {
	case ModeSelection:
		return g.updateSelection()
	case ModePlay:
		return g.updatePlay()
	}
	return nil
}

// updateSelection ミッション選択画面の更新
func (g *Game) updateSelection() error {
	if g.input.IsKeyJustPressed(ebiten.KeyUp) && g.selectedIndex > 0 {
		g.selectedIndex--
	}
	if g.input.IsKeyJustPressed(ebiten.KeyDown) && g.selectedIndex < len(g.missions)-1 {
		g.selectedIndex++
	}

	if g.input.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if !g.input.IsKeyJustPressed(ebiten.KeyEnter) || len(g.missions) == 0 {
		return nil
	}

	m := g.missions[g.selectedIndex]
	g.mu.Lock()
	g.selected = m
	callback := g.onMissionSelected
	g.mu.Unlock()

	// コールバックがない場合は選択結果を返して終了
	if callback == nil {
		return ebiten.Termination
	}

	s, err := callback(m)
	if err != nil {
		g.mu.Lock()
		g.transitionError = err
		g.mu.Unlock()
		return ebiten.Termination
	}
	g.SetSession(s)
	g.mu.Lock()
	g.startTime = time.Now() // タイムアウトをリセット
	g.mu.Unlock()
	return nil
}

// updatePlay ミッション実行中の更新
func (g *Game) updatePlay() error {
	if g.input.IsKeyJustPressed(ebiten.KeyEscape) {
		g.endSession(scoreboard.OutcomeClosed)

		g.mu.RLock()
		hasSelection := g.hasSelection
		g.mu.RUnlock()
		if hasSelection {
			g.returnToSelection()
			return nil
		}
		return ebiten.Termination
	}

	g.mu.RLock()
	s, finished, interval, maxTicks := g.session, g.finished, g.tickInterval, g.maxTicks
	g.mu.RUnlock()
	if s == nil || finished {
		return nil
	}

	g.processPlayerInput(s, interval)
	s.Step(interval)

	if maxTicks > 0 && s.Tick() >= maxTicks {
		g.endSession(scoreboard.OutcomeTickLimit)
		return ebiten.Termination
	}
	if s.Idle() {
		// 終了後も画面は開いたまま（Escで抜ける）
		g.endSession(scoreboard.OutcomeIdle)
	}
	return nil
}

// processPlayerInput 矢印キーで移動、Enter/Spaceで乗り降り
func (g *Game) processPlayerInput(s *session.Session, interval time.Duration) {
	w := s.World()
	_, driving := w.PlayerVehicle()

	speed := walkSpeed
	if driving {
		speed = driveSpeed
	}
	step := speed * interval.Seconds()

	var dx, dy float64
	if g.input.IsKeyPressed(ebiten.KeyLeft) {
		dx -= step
	}
	if g.input.IsKeyPressed(ebiten.KeyRight) {
		dx += step
	}
	if g.input.IsKeyPressed(ebiten.KeyUp) {
		dy -= step
	}
	if g.input.IsKeyPressed(ebiten.KeyDown) {
		dy += step
	}
	if dx != 0 || dy != 0 {
		w.MovePlayer(dx, dy)
	}

	if g.input.IsKeyJustPressed(ebiten.KeyEnter) || g.input.IsKeyJustPressed(ebiten.KeySpace) {
		if driving {
			w.ExitVehicle()
			return
		}
		if h, ok := w.NearestVehicle(enterRadius); ok {
			if err := w.EnterVehicle(h); err != nil {
				logger.GetLogger().Debug("Cannot enter vehicle", "handle", int(h), "error", err)
			}
		}
	}
}

// endSession セッションを終了してコールバックを呼ぶ（1回だけ）
func (g *Game) endSession(outcome scoreboard.Outcome) {
	g.mu.Lock()
	s := g.session
	if s == nil || g.finished {
		g.mu.Unlock()
		return
	}
	g.finished = true
	g.outcome = outcome
	callback := g.onSessionEnd
	g.mu.Unlock()

	// コールバックは停止前の状態を参照できる
	if callback != nil {
		callback(s, outcome)
	}
	s.Stop()
}

// returnToSelection はプレイモードからミッション選択画面に戻る
// ミッション一覧と選択位置は保持する
func (g *Game) returnToSelection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = ModeSelection
	g.session = nil
	g.finished = false
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	switch g.mode {
	case ModeSelection:
		g.drawSelection(screen)
	case ModePlay:
		g.drawPlay(screen)
	}
}

// drawSelection ミッション選択画面の描画
func (g *Game) drawSelection(screen *ebiten.Image) {
	drawText(screen, "Select a Mission", 50, 50, textColor)

	for i, m := range g.missions {
		y := 120 + float64(i*30)

		prefix := "  "
		clr := color.Color(textColor)
		if i == g.selectedIndex {
			prefix = "> "
			clr = selectedTextColor
		}
		drawText(screen, fmt.Sprintf("%s[%d] %s", prefix, m.ID, m.DisplayName()), 70, y, clr)
	}

	drawText(screen, "Use UP/DOWN to select, ENTER to confirm, ESC to exit", 50, 700, textColor)
}

// drawPlay ミッション画面の描画（プレイヤー中心の見下ろし視点）
func (g *Game) drawPlay(screen *ebiten.Image) {
	g.mu.RLock()
	s, finished, outcome := g.session, g.finished, g.outcome
	g.mu.RUnlock()
	if s == nil {
		return
	}
	w := s.World()
	camera := w.PlayerPosition()

	for _, t := range w.Triggers() {
		lo, hi := t.Bounds()
		x0, y0 := worldToScreen(lo, camera)
		x1, y1 := worldToScreen(hi, camera)
		clr := triggerColor
		if t.Disabled() {
			clr = triggerOffColor
		}
		vector.StrokeRect(screen, x0, y0, x1-x0, y1-y0, 1, clr, false)
	}

	for _, e := range w.Entities() {
		if e.Player {
			continue
		}
		x, y := worldToScreen(e.Pos, camera)
		size := float32(blockSize)
		var clr color.Color
		switch e.Kind {
		case vm.KindVehicle:
			clr = vehicleColor
			if e.Exploded {
				clr = wreckColor
			}
		case vm.KindDoor:
			clr = doorClosedColor
			if e.Open {
				clr = doorOpenColor
			}
		default:
			clr = pedColor
			size = blockSize / 2
		}
		vector.DrawFilledRect(screen, x-size/2, y-size/2, size, size, clr, false)
	}

	px, py := worldToScreen(camera, camera)
	vector.DrawFilledRect(screen, px-4, py-4, 8, 8, playerColor, false)

	m := s.Mission()
	drawText(screen, fmt.Sprintf("[%d] %s  %s", m.ID, m.DisplayName(), m.Map), 10, 10, textColor)
	drawText(screen, fmt.Sprintf("SCORE %d / %d", w.Score(), w.TargetScore()), 10, 30, textColor)
	drawText(screen, fmt.Sprintf("TICK %d  THREADS %d", s.Tick(), s.Engine().ActiveThreads()), 10, 50, textColor)
	if briefings := w.Briefings(); len(briefings) > 0 {
		drawText(screen, fmt.Sprintf("BRIEFING %d", briefings[len(briefings)-1]), 10, 70, selectedTextColor)
	}
	if _, driving := w.PlayerVehicle(); driving {
		drawText(screen, "DRIVING", 10, 90, textColor)
	}
	if finished {
		drawText(screen, fmt.Sprintf("MISSION OVER (%s) - press ESC", outcome), 10, screenHeight-30, selectedTextColor)
	}
}

// worldToScreen ワールド座標をカメラ中心のスクリーン座標に変換
func worldToScreen(p, camera geom.XY) (float32, float32) {
	x := (p.X-camera.X)*blockSize + screenWidth/2
	y := (p.Y-camera.Y)*blockSize + screenHeight/2
	return float32(x), float32(y)
}

func drawText(screen *ebiten.Image, s string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, defaultFace, op)
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// RunOptions GUI実行時の設定
type RunOptions struct {
	Title        string
	Timeout      time.Duration
	TPS          int
	MaxTicks     uint64
	HasSelection bool
	Session      *session.Session // 事前に選択済みの場合
	OnSelected   func(m *mission.Mission) (*session.Session, error)
	OnSessionEnd func(s *session.Session, outcome scoreboard.Outcome)
}

// Run GUIモードでウィンドウを実行
// Sessionが指定されていればプレイモード、なければ選択画面から開始する
func Run(missions []*mission.Mission, opts RunOptions) (*mission.Mission, error) {
	mode := ModeSelection
	if opts.Session != nil {
		mode = ModePlay
	}
	game := NewGame(mode, missions, opts.Timeout)
	game.SetHasSelection(opts.HasSelection)
	game.SetMaxTicks(opts.MaxTicks)
	game.SetOnMissionSelected(opts.OnSelected)
	game.SetOnSessionEnd(opts.OnSessionEnd)
	if opts.TPS > 0 {
		ebiten.SetTPS(opts.TPS)
		game.SetTickInterval(time.Second / time.Duration(opts.TPS))
	}
	if opts.Session != nil {
		game.SetSession(opts.Session)
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		return nil, fmt.Errorf("failed to run game: %w", err)
	}

	// ウィンドウが閉じられた場合
	game.endSession(scoreboard.OutcomeClosed)

	if err := game.GetTransitionError(); err != nil {
		return nil, err
	}
	return game.GetSelectedMission(), nil
}
