package cli

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/zurustar/mission-vm/pkg/config"
)

// ProgramName はヘルプやエラーに表示するプログラム名
const ProgramName = "mission-vm"

// ParseArgs コマンドライン引数を解析してConfigを返す
// 優先順位: コマンドラインフラグ > 環境変数 > 設定ファイル > デフォルト値
func ParseArgs(args []string) (*config.Config, error) {
	return ParseArgsWithFs(args, afero.NewOsFs())
}

// ParseArgsWithFs 設定ファイルの読み込みに使うファイルシステムを指定してParseArgsを実行（テスト用）
func ParseArgsWithFs(args []string, fsys afero.Fs) (*config.Config, error) {
	fs := newFlagSet()

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	showHelp, _ := fs.GetBool("help")
	if showHelp {
		return &config.Config{ShowHelp: true}, nil
	}

	v := config.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// 設定ファイル（指定された場合のみ）
	if path, _ := fs.GetString("config"); path != "" {
		if err := config.ReadFile(v, fsys, path); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}

	// 位置引数（キャンペーンのディレクトリまたはミッションファイル）
	if fs.NArg() > 0 {
		cfg.CampaignPath = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("too many arguments: %v", fs.Args()[1:])
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(ProgramName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.IntP(config.KeyTimeout, "t", 0, "タイムアウト時間（秒）")
	fs.StringP(config.KeyLogLevel, "l", config.DefaultLogLevel, "ログレベル（debug, info, warn, error）")
	fs.Bool(config.KeyHeadless, false, "ヘッドレスモード")
	fs.IntP(config.KeyMission, "m", 0, "実行するミッションID")
	fs.Int(config.KeyTPS, config.DefaultTPS, "1秒あたりのティック数")
	fs.Int(config.KeyTicks, 0, "指定ティック数で終了（0は無制限）")
	fs.String("config", "", "設定ファイル（toml, yaml, json）")
	fs.String(config.KeyMetricsAddr, "", "Prometheusメトリクスを公開するアドレス（例: :9100）")
	fs.String(config.KeyScoreboard, "", "スコアを記録するSQLiteファイル")
	fs.BoolP("help", "h", false, "ヘルプを表示")
	return fs
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `%[1]s - mission script interpreter

Usage:
  %[1]s [options] [campaign-path]

Arguments:
  campaign-path    ミッションファイルを含むディレクトリ、またはミッションファイル（.INI）のパス（省略可）
                   省略した場合は埋め込みのミッションを使用
                   ディレクトリにcampaign.tomlがあれば読み込む

Options:
%[2]s
Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  MISSION=<id>                実行するミッションID
  TPS, TICKS, METRICS_ADDR, SCOREBOARD も同様に指定可能

Examples:
  %[1]s /path/to/campaign              ディレクトリを指定
  %[1]s /path/to/campaign/MISSION.INI  ミッションファイルを明示的に指定
  %[1]s --headless -m 2 --ticks 300    ミッション2を300ティックだけヘッドレス実行
  %[1]s --log-level debug              デバッグログを有効化
  HEADLESS=1 %[1]s /path/to/campaign   環境変数でヘッドレスモード
`, ProgramName, newFlagSet().FlagUsages())
}
