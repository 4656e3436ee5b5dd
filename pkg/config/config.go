package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/zurustar/mission-vm/pkg/logger"
)

// 設定キー（コマンドラインフラグ名と共通）
// 環境変数名はキーを大文字にして "-" を "_" に置き換えたもの（例: LOG_LEVEL）
const (
	KeyTimeout     = "timeout"
	KeyLogLevel    = "log-level"
	KeyHeadless    = "headless"
	KeyMission     = "mission"
	KeyTPS         = "tps"
	KeyTicks       = "ticks"
	KeyMetricsAddr = "metrics-addr"
	KeyScoreboard  = "scoreboard"
)

// デフォルト値
const (
	DefaultLogLevel = "info"
	DefaultTPS      = 30
)

// Config は実行時の設定を保持する
type Config struct {
	CampaignPath string        // キャンペーンのディレクトリまたはミッションファイル（空ならembed）
	Mission      int           // 事前選択するミッションID（0は未指定）
	Timeout      time.Duration // タイムアウト時間（0は無制限）
	LogLevel     string        // ログレベル（debug, info, warn, error）
	Headless     bool          // ヘッドレスモード
	TPS          int           // 1秒あたりのティック数
	MaxTicks     uint64        // 最大ティック数（0は無制限）
	MetricsAddr  string        // Prometheusエンドポイントのアドレス（空なら無効）
	Scoreboard   string        // スコアボードのSQLiteファイル（空なら無効）
	ShowHelp     bool          // ヘルプ表示フラグ
}

// New デフォルト値と環境変数を設定したviperインスタンスを作成
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults デフォルト値を設定
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyHeadless, false)
	v.SetDefault(KeyMission, 0)
	v.SetDefault(KeyTPS, DefaultTPS)
	v.SetDefault(KeyTicks, 0)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyScoreboard, "")
}

// ReadFile 設定ファイルを読み込む（形式は拡張子から判定: toml, yaml, json）
func ReadFile(v *viper.Viper, fsys afero.Fs, path string) error {
	if fsys != nil {
		v.SetFs(fsys)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Decode viperの値からConfigを組み立てて検証する
func Decode(v *viper.Viper) (*Config, error) {
	timeoutSec := v.GetInt(KeyTimeout)
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}

	level := strings.ToLower(v.GetString(KeyLogLevel))
	if _, err := logger.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}

	tps := v.GetInt(KeyTPS)
	if tps <= 0 {
		return nil, fmt.Errorf("tps must be positive, got %d", tps)
	}

	ticks := v.GetInt64(KeyTicks)
	if ticks < 0 {
		return nil, fmt.Errorf("ticks must be non-negative, got %d", ticks)
	}

	id := v.GetInt(KeyMission)
	if id < 0 {
		return nil, fmt.Errorf("mission id must be non-negative, got %d", id)
	}

	return &Config{
		Mission:     id,
		Timeout:     time.Duration(timeoutSec) * time.Second,
		LogLevel:    level,
		Headless:    v.GetBool(KeyHeadless),
		TPS:         tps,
		MaxTicks:    uint64(ticks),
		MetricsAddr: v.GetString(KeyMetricsAddr),
		Scoreboard:  v.GetString(KeyScoreboard),
	}, nil
}

// TickInterval 1ティックの時間
func (c *Config) TickInterval() time.Duration {
	if c.TPS <= 0 {
		return time.Second / DefaultTPS
	}
	return time.Second / time.Duration(c.TPS)
}
