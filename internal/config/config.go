package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chaszcze-site/internal/util"
)

const (
	DefaultAPIURL          = "http://localhost:8000"
	DefaultHTTPAddr        = ":8080"
	DefaultAPITimeout      = 10 * time.Second
	DefaultRegistrationURL = "https://docs.google.com/spreadsheets/d/13wAMcfu7gI0RtXIeh5yjQ6z1NV-lsTQlfCH18i23x0s/edit?gid=831341344#gid=831341344"
	DefaultSheetsRange     = "A:Z"
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)

type Config struct {
	HTTPAddr      string
	BasePublicURL string

	APIURL     string
	APITimeout time.Duration

	SessionSecret string

	AzureClientID     string
	AzureClientSecret string
	AzureTenantID     string
	AzureAPIScope     string

	RegistrationURL          string
	SpreadsheetID            string
	SheetsRange              string
	GoogleServiceAccountJSON string

	TelegramToken  string
	TelegramChatID int64

	LogLevel string
	LogJSON  bool
}

// DevLogin reports whether no identity provider is configured. The dashboard
// is then reachable without a real login.
func (c Config) DevLogin() bool { return c.AzureClientID == "" }

// SheetsEnabled reports whether the registration spreadsheet can be read.
func (c Config) SheetsEnabled() bool {
	return c.GoogleServiceAccountJSON != "" && c.SpreadsheetID != ""
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func FromEnv() (Config, error) {
	var c Config
	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")
	if c.BasePublicURL == "" {
		c.BasePublicURL = "http://localhost" + c.HTTPAddr
	}

	c.APIURL = strings.TrimRight(strings.TrimSpace(os.Getenv("API_URL")), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APITimeout = DefaultAPITimeout
	if raw := strings.TrimSpace(os.Getenv("API_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c, fmt.Errorf("API_TIMEOUT: invalid duration %q", raw)
		}
		c.APITimeout = d
	}

	c.SessionSecret = strings.TrimSpace(os.Getenv("SESSION_SECRET"))

	c.AzureClientID = strings.TrimSpace(os.Getenv("AZURE_AD_CLIENT_ID"))
	c.AzureClientSecret = strings.TrimSpace(os.Getenv("AZURE_AD_CLIENT_SECRET"))
	c.AzureTenantID = strings.TrimSpace(os.Getenv("AZURE_AD_TENANT_ID"))
	c.AzureAPIScope = strings.TrimSpace(os.Getenv("AZURE_AD_API_SCOPE"))

	c.RegistrationURL = strings.TrimSpace(os.Getenv("REGISTRATION_URL"))
	if c.RegistrationURL == "" {
		c.RegistrationURL = DefaultRegistrationURL
	}
	c.SpreadsheetID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	if c.SpreadsheetID == "" {
		c.SpreadsheetID = SpreadsheetIDFromURL(c.RegistrationURL)
	}
	c.SheetsRange = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_RANGE"))
	if c.SheetsRange == "" {
		c.SheetsRange = DefaultSheetsRange
	}
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.TelegramChatID = id
	}

	c.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogJSON = util.NormalizeBoolPL(os.Getenv("LOG_JSON"))

	if !c.DevLogin() {
		if c.AzureClientSecret == "" {
			return c, fmt.Errorf("AZURE_AD_CLIENT_SECRET is empty")
		}
		if c.AzureTenantID == "" {
			return c, fmt.Errorf("AZURE_AD_TENANT_ID is empty")
		}
		if c.SessionSecret == "" {
			return c, fmt.Errorf("SESSION_SECRET is empty")
		}
	}
	if c.SessionSecret == "" {
		c.SessionSecret = "dev-only-session-secret"
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return c, fmt.Errorf("TELEGRAM_CHAT_ID is empty")
	}

	return c, nil
}

// SpreadsheetIDFromURL extracts the document id from a Google Sheets link.
func SpreadsheetIDFromURL(u string) string {
	m := spreadsheetIDPattern.FindStringSubmatch(u)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
