package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "BASE_PUBLIC_URL", "API_URL", "API_TIMEOUT", "SESSION_SECRET",
		"AZURE_AD_CLIENT_ID", "AZURE_AD_CLIENT_SECRET", "AZURE_AD_TENANT_ID", "AZURE_AD_API_SCOPE",
		"REGISTRATION_URL", "GOOGLE_SHEETS_SPREADSHEET_ID", "GOOGLE_SHEETS_RANGE",
		"GOOGLE_SERVICE_ACCOUNT_JSON", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"LOG_LEVEL", "LOG_JSON",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() failed: %v", err)
	}
	if c.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", c.APIURL, DefaultAPIURL)
	}
	if c.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q", c.HTTPAddr)
	}
	if c.APITimeout != DefaultAPITimeout {
		t.Errorf("APITimeout = %s", c.APITimeout)
	}
	if !c.DevLogin() {
		t.Error("expected dev login without AZURE_AD_CLIENT_ID")
	}
	if c.SessionSecret == "" {
		t.Error("dev mode should fall back to a session secret")
	}
	if c.SpreadsheetID != "13wAMcfu7gI0RtXIeh5yjQ6z1NV-lsTQlfCH18i23x0s" {
		t.Errorf("SpreadsheetID = %q", c.SpreadsheetID)
	}
	if c.SheetsEnabled() {
		t.Error("sheets should be disabled without a service account")
	}
	if c.TelegramEnabled() {
		t.Error("telegram should be disabled by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "https://api.example.org/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("LOG_JSON", "tak")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() failed: %v", err)
	}
	if c.APIURL != "https://api.example.org" {
		t.Errorf("APIURL = %q, trailing slash should be trimmed", c.APIURL)
	}
	if c.APITimeout != 3*time.Second {
		t.Errorf("APITimeout = %s", c.APITimeout)
	}
	if !c.TelegramEnabled() || c.TelegramChatID != -1001 {
		t.Errorf("telegram config = %+v", c)
	}
	if !c.LogJSON {
		t.Error("LOG_JSON=tak should enable JSON logs")
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad timeout", map[string]string{"API_TIMEOUT": "soon"}},
		{"bad chat id", map[string]string{"TELEGRAM_CHAT_ID": "abc"}},
		{"token without chat", map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}},
		{"azure without secret", map[string]string{"AZURE_AD_CLIENT_ID": "id", "AZURE_AD_TENANT_ID": "t", "SESSION_SECRET": "s"}},
		{"azure without session secret", map[string]string{"AZURE_AD_CLIENT_ID": "id", "AZURE_AD_CLIENT_SECRET": "x", "AZURE_AD_TENANT_ID": "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSpreadsheetIDFromURL(t *testing.T) {
	if got := SpreadsheetIDFromURL("https://example.org/form"); got != "" {
		t.Errorf("SpreadsheetIDFromURL(non-sheet) = %q", got)
	}
}
