// Package appconfig loads the env-based configuration shared by all binaries and starts the logger
package appconfig

import (
	"errors"
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

// Processor hosting modes
const (
	ModeInProc = "inproc"
	ModePipe   = "pipe"
	ModeKafka  = "kafka"
)

var defaults = map[string]any{
	"APP_PORT":             "8080",
	"GIN_MODE":             "release",
	"LOG_LEVEL":            "info",
	"PROCESSOR_MODE":       ModeInProc,
	"RASTERD_PATH":         "rasterd",
	"KAFKA_REQUEST_TOPIC":  "bg-removal-requests",
	"KAFKA_REPLY_TOPIC":    "bg-removal-replies",
	"KAFKA_GROUPID":        "bgremover",
	"RESULT_STORE":         "local",
	"RESULT_DIR":           "./data/results",
	"UPLOAD_DIR":           "./data/uploads",
	"REMOVAL_TIMEOUT":      "30s",
	"DEFAULT_TOLERANCE":    50.0,
	"MAX_SIDE":             1024,
	"SOURCE_FETCH_TIMEOUT": "15s",
	"SOURCE_ROOTS":         "",
	"SOURCE_ALLOWED_HOSTS": "",
}

// Load reads env variables on top of the given .env files; missing files are skipped
func Load(envFiles ...string) (*config.Config, error) {
	cfg := config.New()
	cfg.EnableEnv("")

	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := cfg.LoadEnvFiles(f); err != nil {
			return nil, fmt.Errorf("failed to load envs from %q: %w", f, err)
		}
	}

	for k, v := range defaults {
		cfg.SetDefault(k, v)
	}
	return cfg, nil
}

// InitLogger starts the console logger with LOG_LEVEL
func InitLogger(cfg *config.Config) error {
	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.GetString("LOG_LEVEL")); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	return nil
}
