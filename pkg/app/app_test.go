package app

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/scoreboard"
	"go.uber.org/goleak"
)

const campaignINI = `[1]
Quick
(2,2,0)PLAYER 0
10 (2,2,0)TRIGGER 20 0
(0,0,0)TARGET 100
-1
20 SCORE 100
DONOWT

[2]
Forever
(2,2,0)PLAYER 0
10 1(2,2,0)TRIGGER 20 0
-1
20 DONOWT
`

func embeddedCampaign() fstest.MapFS {
	return fstest.MapFS{
		"missions/MISSION.INI":   {Data: []byte(campaignINI)},
		"missions/campaign.toml": {Data: []byte("name = \"Test Campaign\"\n")},
	}
}

// run はアプリケーションを実行し、標準出力の内容を返す
func run(t *testing.T, embedFS fs.FS, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { logger.SetContextProvider(nil) })

	var out bytes.Buffer
	app := New(embedFS, WithIO(strings.NewReader(stdin), &out))
	err := app.Run(args)
	return out.String(), err
}

func TestRun_Help(t *testing.T) {
	out, err := run(t, embeddedCampaign(), "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--headless")
}

func TestRun_InvalidArgs(t *testing.T) {
	_, err := run(t, embeddedCampaign(), "", "--unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse args")

	_, err = run(t, embeddedCampaign(), "", "--headless", "--log-level", "verbose")
	assert.Error(t, err)
}

func TestRun_NoMissions(t *testing.T) {
	_, err := run(t, fstest.MapFS{}, "", "--headless")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load campaign")
}

func TestRun_HeadlessExplicitMission(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	out, err := run(t, embeddedCampaign(), "", "--headless", "--mission", "1", "--tps", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Application started")
	assert.Contains(t, out, "campaign=\"Test Campaign\"")
	assert.Contains(t, out, "Mission 1 finished: idle (score 100 / 100")
	assert.Contains(t, out, "Application terminated normally")
}

func TestRun_HeadlessPrompt(t *testing.T) {
	out, err := run(t, embeddedCampaign(), "2\n", "--headless", "--tps", "1000", "--ticks", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Missions:")
	assert.Contains(t, out, "Selected: [2] Forever")
	assert.Contains(t, out, "Mission 2 finished: tick_limit (score 0 / 0, 5 ticks)")
}

func TestRun_HeadlessPromptCancelled(t *testing.T) {
	_, err := run(t, embeddedCampaign(), "q\n", "--headless")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user cancelled")
}

func TestRun_HeadlessDebugLogsMissionAndTick(t *testing.T) {
	out, err := run(t, embeddedCampaign(), "", "--headless", "-m", "1", "--tps", "1000", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "Final engine state")
	// セッション中のログにはミッションとティックが付与される
	assert.Regexp(t, `(?m)msg="Session finished" mission=1 .* tick=\d+$`, out)
}

func TestRun_RecordsScoreboard(t *testing.T) {
	db := filepath.Join(t.TempDir(), "scores.db")

	for i := 0; i < 2; i++ {
		_, err := run(t, embeddedCampaign(), "", "--headless", "-m", "1", "--tps", "1000", "--scoreboard", db)
		require.NoError(t, err)
	}

	board, err := scoreboard.Open(db, logger.GetLogger())
	require.NoError(t, err)
	defer board.Close()

	recent, err := board.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	best, ok, err := board.Best(context.Background(), "Test Campaign", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, best.Score)
	assert.True(t, best.Passed)
	assert.Equal(t, scoreboard.OutcomeIdle, best.Outcome)
	assert.Equal(t, "Quick", best.MissionName)
}

func TestRun_ExternalCampaign(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MISSION.INI"), []byte(campaignINI), 0o644))

	out, err := run(t, nil, "", "--headless", "-m", "1", "--tps", "1000", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Mission 1 finished: idle")
}
