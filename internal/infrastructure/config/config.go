package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RetrievalMethod selects which retrieval methods the orchestrator tries.
type RetrievalMethod string

const (
	RetrievalAPI  RetrievalMethod = "api"
	RetrievalWeb  RetrievalMethod = "web"
	RetrievalAuto RetrievalMethod = "auto"
)

// OperationMode selects how the scheduler runs the workflow.
type OperationMode string

const (
	ModeAutomatic OperationMode = "automatic"
	ModeManual    OperationMode = "manual"
)

// NamingFormat selects the output filename formatter.
type NamingFormat string

const (
	NamingTaxCode      NamingFormat = "tax_code"
	NamingInvoice      NamingFormat = "invoice"
	NamingBillOfLading NamingFormat = "bill_of_lading"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App     AppSettings
	HTTP    HTTPSettings
	Log     LogSettings
	Source  SourceSettings
	Service ServiceSettings
}

type AppSettings struct {
	Name            string
	Version         string
	Environment     string
	OutputDirectory string
	PollingInterval time.Duration
	OperationMode   OperationMode
	// TaxCodes restricts monitoring to these companies; empty means all.
	TaxCodes []string
}

// HTTPSettings configure the localhost control/status API consumed by the UI.
type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogSettings struct {
	Level string
}

// SourceSettings configure the read-only ECUS5 declarations database.
type SourceSettings struct {
	Server         string
	Port           int
	Database       string
	User           string
	Password       string
	ConnectTimeout time.Duration
	BusyTimeout    time.Duration
	MaxOpenConns   int
	ConnMaxLife    time.Duration
}

// ServiceSettings configure the customs retrieval pipeline.
type ServiceSettings struct {
	APIURL          string
	PrimaryWebURL   string
	BackupWebURL    string
	APITimeout      time.Duration
	WebTimeout      time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	SessionReuse    bool
	RetrievalMethod RetrievalMethod
	NamingFormat    NamingFormat
	TrackingDBPath  string
}

// Load reads configuration from the environment, honoring an optional .env
// file, and validates enumerated options. Invalid enum values are load errors.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:            getEnv("APP_NAME", "mavach"),
			Version:         getEnv("APP_VERSION", "0.1.0"),
			Environment:     getEnv("APP_ENV", "local"),
			OutputDirectory: getEnv("MAVACH_OUTPUT_DIR", "output"),
			PollingInterval: getEnvAsDuration("MAVACH_POLLING_INTERVAL", 300*time.Second),
			OperationMode:   OperationMode(getEnv("MAVACH_OPERATION_MODE", string(ModeManual))),
			TaxCodes:        getEnvAsList("MAVACH_TAX_CODES"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8246),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Source: SourceSettings{
			Server:         getEnv("ECUS_SERVER", "localhost"),
			Port:           getEnvAsInt("ECUS_PORT", 5432),
			Database:       getEnv("ECUS_DATABASE", "ECUS5VNACCS"),
			User:           getEnv("ECUS_USER", ""),
			Password:       os.Getenv("ECUS_PASSWORD"),
			ConnectTimeout: getEnvAsDuration("ECUS_CONNECT_TIMEOUT", 10*time.Second),
			BusyTimeout:    getEnvAsDuration("ECUS_BUSY_TIMEOUT", 30*time.Second),
			MaxOpenConns:   getEnvAsInt("ECUS_MAX_OPEN_CONNS", 5),
			ConnMaxLife:    getEnvAsDuration("ECUS_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Service: ServiceSettings{
			APIURL:          getEnv("MAVACH_API_URL", "http://103.248.160.25/WS_Container/QRCode.asmx"),
			PrimaryWebURL:   strings.TrimSpace(os.Getenv("MAVACH_PRIMARY_WEB_URL")),
			BackupWebURL:    strings.TrimSpace(os.Getenv("MAVACH_BACKUP_WEB_URL")),
			APITimeout:      getEnvAsDuration("MAVACH_API_TIMEOUT", 10*time.Second),
			WebTimeout:      getEnvAsDuration("MAVACH_WEB_TIMEOUT", 15*time.Second),
			MaxRetries:      getEnvAsInt("MAVACH_MAX_RETRIES", 1),
			RetryDelay:      getEnvAsDuration("MAVACH_RETRY_DELAY", 5*time.Second),
			SessionReuse:    getEnvAsBool("MAVACH_SESSION_REUSE", true),
			RetrievalMethod: RetrievalMethod(getEnv("MAVACH_RETRIEVAL_METHOD", string(RetrievalAuto))),
			NamingFormat:    NamingFormat(getEnv("MAVACH_PDF_NAMING_FORMAT", string(NamingTaxCode))),
			TrackingDBPath:  getEnv("MAVACH_TRACKING_DB", "mavach_tracking.db"),
		},
	}

	switch cfg.Service.RetrievalMethod {
	case RetrievalAPI, RetrievalWeb, RetrievalAuto:
	default:
		return cfg, fmt.Errorf("invalid config: MAVACH_RETRIEVAL_METHOD must be one of api, web, auto (got %q)", cfg.Service.RetrievalMethod)
	}

	switch cfg.App.OperationMode {
	case ModeAutomatic, ModeManual:
	default:
		return cfg, fmt.Errorf("invalid config: MAVACH_OPERATION_MODE must be automatic or manual (got %q)", cfg.App.OperationMode)
	}

	switch cfg.Service.NamingFormat {
	case NamingTaxCode, NamingInvoice, NamingBillOfLading:
	default:
		return cfg, fmt.Errorf("invalid config: MAVACH_PDF_NAMING_FORMAT must be one of tax_code, invoice, bill_of_lading (got %q)", cfg.Service.NamingFormat)
	}

	if cfg.Service.APIURL == "" && cfg.Service.PrimaryWebURL == "" {
		return cfg, errors.New("invalid config: at least one of MAVACH_API_URL or MAVACH_PRIMARY_WEB_URL is required")
	}
	if cfg.Service.MaxRetries < 0 {
		return cfg, errors.New("invalid config: MAVACH_MAX_RETRIES must not be negative")
	}
	if cfg.App.PollingInterval <= 0 {
		return cfg, errors.New("invalid config: MAVACH_POLLING_INTERVAL must be positive")
	}

	return cfg, nil
}

// Address returns the control API listen address. The API is loopback-only;
// the desktop UI runs on the same machine.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf("127.0.0.1:%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsDuration accepts either a Go duration string ("15s") or a bare
// number of seconds, matching the original configuration files.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
