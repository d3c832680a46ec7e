package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	DB      DBConfig      `mapstructure:"db"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Cron    CronConfig    `mapstructure:"cron"`
	Trade   TradeConfig   `mapstructure:"trade"`

	// Proxy maps an instrument code with no independent quote feed to the
	// on-exchange code whose rate stands in for it.
	Proxy map[string]string `mapstructure:"proxy"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// StoreConfig selects the persistence backend. "file" keeps the portfolio
// and transaction log as flat JSON files; "postgres" uses the database
// configured under db and additionally persists finalized valuations.
type StoreConfig struct {
	Backend         string `mapstructure:"backend"`
	PortfolioFile   string `mapstructure:"portfolio_file"`
	TransactionFile string `mapstructure:"transaction_file"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type FeedsConfig struct {
	Estimate  FeedConfig `mapstructure:"estimate"`
	History   FeedConfig `mapstructure:"history"`
	Tencent   FeedConfig `mapstructure:"tencent"`
	Sina      FeedConfig `mapstructure:"sina"`
	Eastmoney FeedConfig `mapstructure:"eastmoney"`
}

type FeedConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	// MinFetchInterval is the floor between two valuation batches; the UI
	// tick runs much faster and simply re-renders the last batch.
	MinFetchInterval time.Duration `mapstructure:"min_fetch_interval"`
	Concurrency      int           `mapstructure:"concurrency"`
}

type CronConfig struct {
	Tick       string `mapstructure:"tick"`
	CachePrune string `mapstructure:"cache_prune"`
}

type TradeConfig struct {
	// OrderCutoff is the local HH:MM after which a submitted order trades on
	// the next calendar day.
	OrderCutoff string `mapstructure:"order_cutoff"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.portfolio_file", "data/portfolio.json")
	v.SetDefault("store.transaction_file", "data/transactions.json")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")

	v.SetDefault("feeds.estimate.base_url", "http://fundgz.1234567.com.cn/js")
	v.SetDefault("feeds.estimate.timeout", "5s")
	v.SetDefault("feeds.history.base_url", "http://api.fund.eastmoney.com/f10/lsjz")
	v.SetDefault("feeds.history.timeout", "3s")
	v.SetDefault("feeds.tencent.base_url", "http://qt.gtimg.cn")
	v.SetDefault("feeds.tencent.timeout", "1500ms")
	v.SetDefault("feeds.sina.base_url", "http://hq.sinajs.cn")
	v.SetDefault("feeds.sina.timeout", "1500ms")
	v.SetDefault("feeds.eastmoney.base_url", "http://push2.eastmoney.com/api/qt/stock/get")
	v.SetDefault("feeds.eastmoney.timeout", "1500ms")

	v.SetDefault("refresh.min_fetch_interval", "4s")
	v.SetDefault("refresh.concurrency", 5)
	v.SetDefault("cron.tick", "@every 1s")
	v.SetDefault("cron.cache_prune", "0 5 0 * * *")
	v.SetDefault("trade.order_cutoff", "15:00")

	// QDII funds without their own estimate feed borrow an on-exchange
	// proxy's rate (silver LOF and NASDAQ ETFs).
	v.SetDefault("proxy", map[string]string{
		"019005": "161226",
		"019004": "161226",
		"017437": "513100",
		"006479": "513100",
		"016702": "513100",
	})

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
