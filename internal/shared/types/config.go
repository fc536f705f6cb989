package types

import (
	"fmt"
	"strings"
	"time"
)

// FullQueuePolicy 决定连接队列已满时 Acceptor 的行为。
type FullQueuePolicy string

const (
	// PolicyBlock 让 Acceptor 阻塞等待，直到有 worker 取走连接。
	PolicyBlock FullQueuePolicy = "block"
	// PolicyReject 立即回复 busy 状态码并关闭连接。
	PolicyReject FullQueuePolicy = "reject"
)

// DispatchConf 包含 worker pool 和连接队列的配置
type DispatchConf struct {
	Workers         int             `ini:"workers"`
	QueueSize       int             `ini:"queue_size"` // 0 表示不限长度
	FullQueuePolicy FullQueuePolicy `ini:"full_queue_policy"`
	IOTimeout       int             `ini:"io_timeout"` // 秒, 0 表示不设超时
}

// IOTimeoutDuration converts the configured seconds into a time.Duration.
func (c DispatchConf) IOTimeoutDuration() time.Duration {
	return time.Duration(c.IOTimeout) * time.Second
}

// ServerConf 包含监听相关的配置
type ServerConf struct {
	BindHost string `ini:"bind_host"`
	Port     int    `ini:"port"`
	Backlog  int    `ini:"backlog"`
}

// AdminConf 包含监控服务 (health / stats / websocket) 的配置
type AdminConf struct {
	Port          int    `ini:"port"` // 0 表示禁用
	User          string `ini:"user"`
	Password      string `ini:"password"`
	StatsInterval int    `ini:"stats_interval"` // 秒
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 server 的统一配置结构体
type Config struct {
	DispatchConf `ini:"common"`
	ServerConf   `ini:"server"`
	AdminConf    `ini:"admin"`
	LogConf      `ini:"log"`
}

// DefaultConfig returns the configuration used when no ini file is present.
func DefaultConfig() *Config {
	return &Config{
		DispatchConf: DispatchConf{
			Workers:         4,
			QueueSize:       64,
			FullQueuePolicy: PolicyBlock,
			IOTimeout:       30,
		},
		ServerConf: ServerConf{
			BindHost: "0.0.0.0",
			Port:     0,
			Backlog:  10,
		},
		AdminConf: AdminConf{
			StatsInterval: 2,
		},
		LogConf: LogConf{
			Level: "info",
		},
	}
}

// Validate 检查配置的一致性。
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	if c.IOTimeout < 0 {
		return fmt.Errorf("io_timeout must not be negative, got %d", c.IOTimeout)
	}
	c.FullQueuePolicy = FullQueuePolicy(strings.ToLower(string(c.FullQueuePolicy)))
	switch c.FullQueuePolicy {
	case PolicyBlock, PolicyReject:
	case "":
		c.FullQueuePolicy = PolicyBlock
	default:
		return fmt.Errorf("unsupported full_queue_policy: %s (supported: %s, %s)",
			c.FullQueuePolicy, PolicyBlock, PolicyReject)
	}
	if c.ServerConf.Port < 0 || c.ServerConf.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.ServerConf.Port)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("backlog must be positive, got %d", c.Backlog)
	}
	if c.AdminConf.Port < 0 || c.AdminConf.Port > 65535 {
		return fmt.Errorf("admin port out of range: %d", c.AdminConf.Port)
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 2
	}
	return nil
}
