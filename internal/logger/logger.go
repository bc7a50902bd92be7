package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.Logger

// Init 初始化全局日志
// level 取 debug/info/warn/error，format 取 console/json，
// outputPath 为 stdout、stderr 或文件路径，留空时写 stdout
func Init(level, format, outputPath string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if outputPath == "" {
		outputPath = "stdout"
	}

	var encCfg zapcore.EncoderConfig
	if format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
	} else {
		format = "console"
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	// Config.Build 自带 caller 标注和 Error 级别堆栈
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         format,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{outputPath},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("构建日志器失败: %w", err)
	}
	global = l
	return nil
}

// Get 返回全局 Logger，使用前必须 Init
func Get() *zap.Logger {
	if global == nil {
		panic("logger 未初始化")
	}
	return global
}

// Debug 全局快捷入口
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

// Info 全局快捷入口
func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

// Warn 全局快捷入口
func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

// Error 全局快捷入口
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// Fatal 全局快捷入口
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// Sync 退出前刷新缓冲，未初始化时为空操作
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
