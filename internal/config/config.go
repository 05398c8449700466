package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every run-time tunable. It is built once at startup and
// passed by value into constructors; nothing reads the environment later.
type Config struct {
	InputPath  string
	OutputPath string
	LedgerPath string

	LookupBaseURL string
	DocBaseURL    string
	UserAgent     string

	RequestTimeoutMs  int
	DownloadTimeoutMs int
	RateLimitRPS      int
	CrawlWorkers      int
	RowLimit          int

	MinDocBytes        int64
	MaxDocBytes        int64
	QualitySamplePages int
	MinExtractedChars  int
	MinAlphaRatio      float64

	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		InputPath:  getEnv("PPLS_INPUT", filepath.Join(cwd, "product_with_reg_and_name.csv")),
		OutputPath: getEnv("PPLS_OUTPUT", filepath.Join(cwd, "epa_ppls_labels.json")),
		LedgerPath: getEnv("PPLS_LEDGER_PATH", filepath.Join(cwd, "data", "crawl.db")),

		LookupBaseURL: getEnv("PPLS_LOOKUP_BASE_URL", "https://ordspub.epa.gov/ords/pesticides/cswu/ppls"),
		DocBaseURL:    getEnv("PPLS_DOC_BASE_URL", "https://www3.epa.gov/pesticides/chem_search/ppls"),
		UserAgent:     getEnv("PPLS_USER_AGENT", "ExtensionBot"),

		RequestTimeoutMs:  getEnvInt("PPLS_REQUEST_TIMEOUT_MS", 10000),
		DownloadTimeoutMs: getEnvInt("PPLS_DOWNLOAD_TIMEOUT_MS", 20000),
		RateLimitRPS:      getEnvInt("PPLS_RATE_LIMIT_RPS", 10),
		CrawlWorkers:      getEnvInt("PPLS_CRAWL_WORKERS", 4),
		RowLimit:          getEnvInt("PPLS_ROW_LIMIT", 0),

		MinDocBytes:        getEnvInt64("PPLS_MIN_DOC_BYTES", 20_000),
		MaxDocBytes:        getEnvInt64("PPLS_MAX_DOC_BYTES", 40_000_000),
		QualitySamplePages: getEnvInt("PPLS_QUALITY_SAMPLE_PAGES", 2),
		MinExtractedChars:  getEnvInt("PPLS_MIN_EXTRACTED_CHARS", 400),
		MinAlphaRatio:      getEnvFloat("PPLS_MIN_ALPHA_RATIO", 0.35),

		LogLevel: getEnv("PPLS_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
