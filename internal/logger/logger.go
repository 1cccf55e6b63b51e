package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level は全ロガー共通の出力レベル。SetLevelで起動後に変更できる。
var level = new(slog.LevelVar)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
// 出力レベルは環境変数LOG_LEVELから決める。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	SetLevel(os.Getenv("LOG_LEVEL"))
	logger := Setup(w)
	slog.SetDefault(logger)
}

// SetLevel は出力レベルを変更する。
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel はdebug、info、warn、errorをslog.Levelに変換する。
// 不明な値はinfoとして扱う。
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
