package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:       "./crystal.db",
		TargetsDir:   "./targets",
		Port:         "8080",
		APIAccessKey: "test-key",
		CronSchedule: "0 2 * * *",
		UserAgent:    "Test Agent",
		PageDelay:    1,
		MaxPages:     10,
		FetchTimeout: 30,
		Timezone:     "Asia/Shanghai",
		Debug:        true,
		Version:      "test-version",
	}

	if cfg.DBPath != "./crystal.db" {
		t.Errorf("Expected db path './crystal.db', got '%s'", cfg.DBPath)
	}
	if cfg.TargetsDir != "./targets" {
		t.Errorf("Expected targets dir './targets', got '%s'", cfg.TargetsDir)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.CronSchedule != "0 2 * * *" {
		t.Errorf("Expected cron schedule '0 2 * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.PageDelay != 1 {
		t.Errorf("Expected page delay 1, got %d", cfg.PageDelay)
	}
	if cfg.MaxPages != 10 {
		t.Errorf("Expected max pages 10, got %d", cfg.MaxPages)
	}
	if cfg.FetchTimeout != 30 {
		t.Errorf("Expected fetch timeout 30, got %d", cfg.FetchTimeout)
	}
	if cfg.Timezone != "Asia/Shanghai" {
		t.Errorf("Expected timezone 'Asia/Shanghai', got '%s'", cfg.Timezone)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestGet(t *testing.T) {
	globalCfg = &Cfg{Port: "9999", Version: "test"}
	defer func() { globalCfg = nil }()

	if Get().Port != "9999" {
		t.Errorf("Expected loaded config, got %+v", Get())
	}
	if Get().Version != "test" {
		t.Errorf("Expected version 'test', got %q", Get().Version)
	}
}

func TestGetPanicsBeforeLoad(t *testing.T) {
	globalCfg = nil
	defer func() {
		if recover() == nil {
			t.Error("Expected panic when configuration is not loaded")
		}
	}()
	Get()
}

func TestApplyTimezone(t *testing.T) {
	if err := applyTimezone("UTC"); err != nil {
		t.Errorf("Expected UTC to be valid, got %v", err)
	}
	if err := applyTimezone("Not/AZone"); err == nil {
		t.Error("Expected error for unknown timezone")
	}
}
