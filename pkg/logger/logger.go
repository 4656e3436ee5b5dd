package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *slog.Logger

	providerMu sync.RWMutex
	provider   ContextProvider
)

// ParseLevel ログレベル文字列をslog.Levelに変換
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化（出力先は標準出力）
func InitLogger(level string) error {
	return InitLoggerWithWriter(os.Stdout, level)
}

// InitLoggerWithWriter 出力先を指定してslogを初期化
// 全てのレコードにはSetContextProviderで登録された属性が付与される
func InitLoggerWithWriter(w io.Writer, level string) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	text := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(NewContextHandler(text, currentAttrs))
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// SetContextProvider 実行中のセッション情報（ミッション、ティック）を返す関数を登録
// nilを渡すと解除される
func SetContextProvider(p ContextProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

func currentAttrs() []slog.Attr {
	providerMu.RLock()
	p := provider
	providerMu.RUnlock()
	if p == nil {
		return nil
	}
	return p()
}
