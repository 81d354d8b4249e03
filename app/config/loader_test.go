package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crystalsense/crystal/app/database"
)

func writeSeedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "targets.yaml", `
targets:
  - platform: weibo
    type: account
    external_id: "424242"
    display_name: 财经博主
  - platform: xueqiu
    type: symbol
    symbol: SH600519
  - platform: zhihu
    type: keyword
    keyword: 白酒
    enabled: false
`)

	loader := NewLoader(dir)
	targets, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("Expected 3 targets, got %d", len(targets))
	}

	if targets[0].Platform != database.PlatformWeibo || targets[0].ExternalID != "424242" {
		t.Errorf("Unexpected first target: %+v", targets[0])
	}
	if targets[0].DisplayName != "财经博主" {
		t.Errorf("Expected explicit display name, got %q", targets[0].DisplayName)
	}
	if !targets[0].Enabled {
		t.Error("Expected enabled to default to true")
	}

	// Display name falls back to the identity field.
	if targets[1].DisplayName != "SH600519" {
		t.Errorf("Expected display name fallback, got %q", targets[1].DisplayName)
	}

	if targets[2].Enabled {
		t.Error("Expected explicit enabled: false to stick")
	}
}

func TestLoadAllMissingDirectory(t *testing.T) {
	loader := NewLoader("/nonexistent/targets")
	targets, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("Expected no targets, got %d", len(targets))
	}
}

func TestLoadAllRejectsInvalidTarget(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "bad.yaml", `
targets:
  - platform: weibo
    type: account
    keyword: 不该出现
`)

	loader := NewLoader(dir)
	if _, err := loader.LoadAll(); err == nil {
		t.Error("Expected validation error for account target without external_id")
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  database.WatchTarget
		wantErr bool
	}{
		{
			name: "valid account",
			target: database.WatchTarget{
				Platform: database.PlatformWeibo, TargetType: database.TargetTypeAccount, ExternalID: "1",
			},
		},
		{
			name: "valid symbol",
			target: database.WatchTarget{
				Platform: database.PlatformXueqiu, TargetType: database.TargetTypeSymbol, Symbol: "SH600519",
			},
		},
		{
			name: "valid keyword",
			target: database.WatchTarget{
				Platform: database.PlatformZhihu, TargetType: database.TargetTypeKeyword, Keyword: "茅台",
			},
		},
		{
			name: "unknown platform",
			target: database.WatchTarget{
				Platform: "reddit", TargetType: database.TargetTypeKeyword, Keyword: "stonks",
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			target: database.WatchTarget{
				Platform: database.PlatformWeibo, TargetType: "topic", Keyword: "茅台",
			},
			wantErr: true,
		},
		{
			name: "account missing external_id",
			target: database.WatchTarget{
				Platform: database.PlatformWeibo, TargetType: database.TargetTypeAccount,
			},
			wantErr: true,
		},
		{
			name: "symbol with extra field",
			target: database.WatchTarget{
				Platform: database.PlatformXueqiu, TargetType: database.TargetTypeSymbol,
				Symbol: "SH600519", Keyword: "茅台",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(&tt.target)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestValidateTargetDisplayNameFallback(t *testing.T) {
	target := database.WatchTarget{
		Platform:   database.PlatformZhihu,
		TargetType: database.TargetTypeKeyword,
		Keyword:    "白酒",
	}
	if err := ValidateTarget(&target); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if target.DisplayName != "白酒" {
		t.Errorf("Expected display name fallback to keyword, got %q", target.DisplayName)
	}
}
