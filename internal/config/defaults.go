package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			BotID:    "chatrouter",
		},
		Dispatch: DispatchConfig{
			Parallelism:              1,
			MaxConcurrentEvents:      16,
			EventTimeoutSeconds:      30,
			BusBuffer:                100,
			BusPublishTimeoutSeconds: 10,
		},
		Listeners: ListenersConfig{
			Paths: []string{"listeners"},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
				User:    "user",
			},
			Webhook: WebhookConfig{
				Enabled: false,
				Port:    9090,
				Path:    "/webhook",
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Port:    8081,
				Path:    "/ws",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9100",
			Path:    "/metrics",
		},
		Audit: AuditConfig{
			Enabled:       false,
			DBPath:        "~/.chatrouter/audit.db",
			RetentionDays: 30,
			MatchedOnly:   true,
		},
	}
}
