package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"statusd/internal/shared/types"
)

// LoadIni 把 ini 文件映射到 cfg 上。cfg 中已有的值作为默认值，
// 文件不存在时保持默认值不变。随后应用环境变量覆盖。
func LoadIni(cfg *types.Config, fileName string) error {
	if fileName != "" {
		if _, err := os.Stat(fileName); err == nil {
			iniFile, err := ini.Load(fileName)
			if err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", fileName, err)
			}
			if err := iniFile.MapTo(cfg); err != nil {
				return fmt.Errorf("failed to map config file %s: %w", fileName, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config file %s: %w", fileName, err)
		}
	}

	overrideFromEnvInt(&cfg.Workers, "STATUSD_WORKERS")
	overrideFromEnvInt(&cfg.QueueSize, "STATUSD_QUEUE_SIZE")
	overrideFromEnvInt(&cfg.AdminConf.Port, "STATUSD_ADMIN_PORT")
	overrideFromEnvString(&cfg.Level, "STATUSD_LOG_LEVEL")

	return cfg.Validate()
}

// Load is LoadIni starting from types.DefaultConfig().
func Load(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()
	if err := LoadIni(cfg, fileName); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
