package sysutil

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DiagnosticLogName = "LTC-Logger.log"
	JournalLogName    = "LTC-Errors.log"
	panelLines        = 200
)

// Log/LogSugar 全局日志, Journal 只记录检测到的 WHEA 错误
var (
	Log      = zap.NewNop()
	LogSugar = Log.Sugar()
	Journal  = zap.NewNop()
	Panel    = NewPanelBuffer(panelLines)
)

var logFiles []*os.File

// InitLogger builds the console, diagnostic-file and panel cores. dir is the
// application data directory; an empty dir or an unwritable file just leaves
// that sink out.
func InitLogger(dir string, verbose bool) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // 格式化时间输出
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别

	consoleLevel := zap.InfoLevel
	if verbose {
		consoleLevel = zap.DebugLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(config.EncoderConfig),
			zapcore.AddSync(os.Stdout),
			consoleLevel,
		),
		zapcore.NewCore(panelEncoder(), zapcore.AddSync(Panel), zap.InfoLevel),
	}

	fileEnc := config.EncoderConfig
	fileEnc.EncodeLevel = zapcore.CapitalLevelEncoder
	if f := openAppend(dir, DiagnosticLogName); f != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEnc), zapcore.AddSync(f), zap.DebugLevel))
	}

	// 日志文件写入失败不影响程序运行
	discard := zap.ErrorOutput(zapcore.AddSync(io.Discard))
	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), discard)
	LogSugar = Log.Sugar()

	Journal = zap.NewNop()
	if f := openAppend(dir, JournalLogName); f != nil {
		enc := zapcore.EncoderConfig{
			TimeKey:    "T",
			MessageKey: "M",
			EncodeTime: zapcore.TimeEncoderOfLayout("[2006-01-02 15:04:05]"),
			LineEnding: zapcore.DefaultLineEnding,
		}
		Journal = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(f), zap.InfoLevel), discard)
	}
}

// SyncLogger flushes and closes the file sinks.
func SyncLogger() {
	_ = Log.Sync()
	_ = Journal.Sync()
	for _, f := range logFiles {
		_ = f.Close()
	}
	logFiles = nil
}

func openAppend(dir, name string) *os.File {
	if dir == "" {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	logFiles = append(logFiles, f)
	return f
}

func panelEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		MessageKey:       "M",
		EncodeTime:       zapcore.TimeEncoderOfLayout("[15:04:05]"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
	})
}
