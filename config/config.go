package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	DataDir    string `json:"data_dir"`

	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
	BackendURL  string `json:"backend_url"`
	MaxTokens   int    `json:"max_tokens"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Market/News data API keys
	AlphaVantageAPIKey string `json:"alphavantage_api_key"`
	NewsAPIKey         string `json:"newsapi_key"`

	StockSymbols  []string `json:"stock_symbols"`
	CryptoSymbols []string `json:"crypto_symbols"`
	// StockProvider is one of alphavantage, yahoo, longport.
	StockProvider string `json:"stock_provider"`
	// CoinGeckoIDs maps a portfolio symbol to its CoinGecko coin id.
	CoinGeckoIDs map[string]string `json:"coingecko_ids"`

	StockPollInterval  time.Duration `json:"stock_poll_interval"`
	NewsPollInterval   time.Duration `json:"news_poll_interval"`
	OraclePollInterval time.Duration `json:"oracle_poll_interval"`
	CryptoPollInterval time.Duration `json:"crypto_poll_interval"`

	// Ethereum
	RPCURL            string `json:"rpc_url"`
	PrivateKey        string `json:"private_key"`
	ContractAddress   string `json:"contract_address"`
	OracleFeedAddress string `json:"oracle_feed_address"`

	DecisionSchedule   string        `json:"decision_schedule"`
	LLMTimeout         time.Duration `json:"llm_timeout"`
	TradeTimeout       time.Duration `json:"trade_timeout"`
	ExecuteDecisions   bool          `json:"execute_decisions"`
	ArbitrageThreshold float64       `json:"arbitrage_threshold"`
	ArbitrageKeyword   string        `json:"arbitrage_keyword"`
	OracleSymbol       string        `json:"oracle_symbol"`
	OracleSource       string        `json:"oracle_source"`
	SecondarySource    string        `json:"secondary_source"`

	RetrievalTopK   int           `json:"retrieval_top_k"`
	FreshnessWindow time.Duration `json:"freshness_window"`

	HTTPAddr     string `json:"http_addr"`
	AuditLogPath string `json:"audit_log_path"`
	SQLitePath   string `json:"sqlite_path"`
	PortfolioLog string `json:"portfolio_log"`
	TickLog      string `json:"tick_log"`
	NewsLog      string `json:"news_log"`
	PersonasFile string `json:"personas_file"`
	LogLevel     string `json:"log_level"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	return FromEnv(currentDir)
}

// FromEnv returns the defaults under root with .env and environment
// overrides applied.
func FromEnv(root string) *Config {
	cfg := DefaultConfigWithRoot(root)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults with every path under root.
func DefaultConfigWithRoot(root string) *Config {
	dataDir := filepath.Join(root, "data")
	return &Config{
		ProjectDir: root,
		ResultsDir: filepath.Join(root, "results"),
		DataDir:    dataDir,

		LLMProvider: "openai",
		LLMModel:    "gpt-4o-mini",
		MaxTokens:   512,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		StockSymbols:  []string{"AAPL", "TSLA"},
		CryptoSymbols: []string{"BTCUSDT", "ETHUSDT"},
		StockProvider: "alphavantage",
		CoinGeckoIDs: map[string]string{
			"BTCUSDT": "bitcoin",
			"ETHUSDT": "ethereum",
		},

		StockPollInterval:  60 * time.Second,
		NewsPollInterval:   300 * time.Second,
		OraclePollInterval: 300 * time.Second,
		CryptoPollInterval: 300 * time.Second,

		RPCURL:            "https://sepolia.infura.io/v3/",
		OracleFeedAddress: "0x1b44F3514812d835EB1BDB0acB33d3fA3351Ee43",

		DecisionSchedule:   "@every 1m",
		LLMTimeout:         30 * time.Second,
		TradeTimeout:       60 * time.Second,
		ExecuteDecisions:   false,
		ArbitrageThreshold: 0.05,
		ArbitrageKeyword:   "btc",
		OracleSymbol:       "ETH/USD",
		OracleSource:       "chainlink",
		SecondarySource:    "coingecko",

		RetrievalTopK:   5,
		FreshnessWindow: 300 * time.Second,

		HTTPAddr:     ":8080",
		AuditLogPath: filepath.Join(root, "results", "decisions.log"),
		SQLitePath:   filepath.Join(dataDir, "cortextrade.db"),
		PortfolioLog: filepath.Join(dataDir, "portfolio.jsonl"),
		TickLog:      filepath.Join(dataDir, "ticks.jsonl"),
		NewsLog:      filepath.Join(dataDir, "news.jsonl"),
		LogLevel:     "info",
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_KEY"); val != "" {
		c.AlphaVantageAPIKey = val
	}
	if val := os.Getenv("NEWS_API_KEY"); val != "" {
		c.NewsAPIKey = val
	}

	if val := os.Getenv("STOCK_SYMBOLS"); val != "" {
		c.StockSymbols = splitList(val)
	}
	if val := os.Getenv("CRYPTO_SYMBOLS"); val != "" {
		c.CryptoSymbols = splitList(val)
	}
	if val := os.Getenv("STOCK_PROVIDER"); val != "" {
		c.StockProvider = val
	}

	if val := os.Getenv("INFURA_URL"); val != "" {
		c.RPCURL = val
	}
	if val := os.Getenv("PRIVATE_KEY"); val != "" {
		c.PrivateKey = val
	}
	if val := os.Getenv("CONTRACT_ADDRESS"); val != "" {
		c.ContractAddress = val
	}
	if val := os.Getenv("ORACLE_FEED_ADDRESS"); val != "" {
		c.OracleFeedAddress = val
	}

	if val := os.Getenv("DECISION_SCHEDULE"); val != "" {
		c.DecisionSchedule = val
	}
	if val := os.Getenv("LLM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.LLMTimeout = d
		}
	}
	if val := os.Getenv("TRADE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.TradeTimeout = d
		}
	}
	if val := os.Getenv("EXECUTE_DECISIONS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.ExecuteDecisions = enabled
		}
	}
	if val := os.Getenv("ARBITRAGE_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.ArbitrageThreshold = v
		}
	}

	if val := os.Getenv("HTTP_ADDR"); val != "" {
		c.HTTPAddr = val
	}
	if val := os.Getenv("AUDIT_LOG_PATH"); val != "" {
		c.AuditLogPath = val
	}
	if val := os.Getenv("SQLITE_PATH"); val != "" {
		c.SQLitePath = val
	}
	if val := os.Getenv("PERSONAS_FILE"); val != "" {
		c.PersonasFile = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case "openai", "deepseek":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm_provider %q", c.LLMProvider))
	}
	switch c.StockProvider {
	case "alphavantage", "yahoo", "longport":
	default:
		errs = append(errs, fmt.Errorf("unsupported stock_provider %q", c.StockProvider))
	}
	if c.ArbitrageThreshold < 0 {
		errs = append(errs, errors.New("arbitrage_threshold must be >= 0"))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, errors.New("retrieval_top_k must be > 0"))
	}
	if c.FreshnessWindow <= 0 {
		errs = append(errs, errors.New("freshness_window must be > 0"))
	}
	if c.LLMTimeout <= 0 || c.TradeTimeout <= 0 {
		errs = append(errs, errors.New("llm_timeout and trade_timeout must be > 0"))
	}
	if strings.TrimSpace(c.DecisionSchedule) == "" {
		errs = append(errs, errors.New("decision_schedule is required"))
	}
	if strings.TrimSpace(c.OracleSource) == "" || strings.TrimSpace(c.SecondarySource) == "" {
		errs = append(errs, errors.New("oracle_source and secondary_source are required"))
	}
	return errors.Join(errs...)
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir}
	for _, p := range []string{c.AuditLogPath, c.SQLitePath} {
		if strings.TrimSpace(p) != "" {
			dirs = append(dirs, filepath.Dir(p))
		}
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
