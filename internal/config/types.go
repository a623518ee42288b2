package config

// Config is the whole config file. Accepted as YAML or JSON; unknown
// fields are rejected so typos fail loudly instead of silently.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Feed     FeedConfig     `json:"feed,omitempty"`
	Poller   PollerConfig   `json:"poller,omitempty"`
	Fanout   FanoutConfig   `json:"fanout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// HTTPTimeout bounds each Bot API call. Default: "10s".
	HTTPTimeout string `json:"http_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig locates the SQLite database holding the mod snapshot and
// the guild registry.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// FeedConfig points at the mod portal. Defaults target the public portal;
// overriding the URLs is mainly for tests.
type FeedConfig struct {
	BaseURL   string `json:"base_url,omitempty"`
	AssetsURL string `json:"assets_url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	RetryMax  int    `json:"retry_max,omitempty"`
}

// PollerConfig controls the detection cadence.
//
// Defaults: interval "1m", page_size 10.
type PollerConfig struct {
	Interval string `json:"interval,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// FanoutConfig controls outbound delivery.
//
// Defaults: rate_per_sec 5, send_timeout "10s".
type FanoutConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}
