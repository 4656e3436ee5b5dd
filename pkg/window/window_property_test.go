package window

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/mission-vm/pkg/mission"
)

// 選択位置は上下キーをどう押しても一覧の範囲内に収まる
func TestProperty_SelectionIndexStaysInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("selectedIndex within [0, len)", prop.ForAll(
		func(count int, presses []bool) bool {
			missions := make([]*mission.Mission, count)
			for i := range missions {
				missions[i] = &mission.Mission{ID: i + 1}
			}
			game := NewGame(ModeSelection, missions, 0)
			in := newFakeInput()
			game.SetInput(in)

			for _, down := range presses {
				if down {
					in.tap(ebiten.KeyDown)
				} else {
					in.tap(ebiten.KeyUp)
				}
				if err := game.Update(); err != nil {
					return false
				}
				if game.selectedIndex < 0 || game.selectedIndex >= count {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// プレイ中にEscで戻っても、ミッション一覧と選択位置は変わらない
func TestProperty_ReturnToSelectionPreservesState(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("missions and selectedIndex preserved", prop.ForAll(
		func(count, index int) bool {
			missions := make([]*mission.Mission, count)
			for i := range missions {
				missions[i] = &mission.Mission{ID: i + 1}
			}
			index %= count

			game := NewGame(ModePlay, missions, 0)
			game.SetHasSelection(true)
			game.selectedIndex = index
			in := newFakeInput()
			game.SetInput(in)

			in.tap(ebiten.KeyEscape)
			if err := game.Update(); err != nil {
				return false
			}
			if game.mode != ModeSelection || game.selectedIndex != index || len(game.missions) != count {
				return false
			}
			for i, m := range game.missions {
				if m != missions[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
