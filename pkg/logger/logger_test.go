package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LogConfig{Level: "loud", Format: "json"})
	if err == nil {
		t.Fatal("无效级别应报错")
	}
}

func TestNewLogger_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(&config.LogConfig{
		Level:  "info",
		Format: "console",
		File:   config.LogFileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1},
	})
	if err != nil {
		t.Fatalf("初始化日志应成功: %v", err)
	}

	log.Info("assignment created")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(data), "assignment created") {
		t.Fatalf("日志文件应包含写入内容，实际: %s", data)
	}
}
