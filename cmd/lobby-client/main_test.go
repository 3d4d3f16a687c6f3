package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	data := `
[server]
url = "ws://from-file/ws"
name = "file-name"

[credentials]
token_file = "/tmp/token.json"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	file, err := loadFile(Flags{
		ConfigFile:  path,
		Server:      "ws://from-flag/ws",
		Token:       "abc",
		NoReconnect: true,
		LogLevel:    "debug",
	})
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}

	if file.Server.URL != "ws://from-flag/ws" {
		t.Errorf("URL = %q", file.Server.URL)
	}
	if file.Server.Name != "file-name" {
		t.Errorf("Name = %q", file.Server.Name)
	}
	if file.Credentials.Token != "abc" || file.Credentials.TokenFile != "" {
		t.Errorf("Credentials = %+v", file.Credentials)
	}
	if file.Reconnect.Auto == nil || *file.Reconnect.Auto {
		t.Error("expected auto reconnect disabled")
	}
	if file.Log.Level != "debug" {
		t.Errorf("Level = %q", file.Log.Level)
	}
}

func TestLoadFileSaveTokenKeepsTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	data := "server:\n  url: ws://x/ws\ncredentials:\n  token_file: /tmp/token.json\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	file, err := loadFile(Flags{ConfigFile: path, Token: "abc", SaveToken: true})
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if file.Credentials.TokenFile != "/tmp/token.json" || file.Credentials.Token != "" {
		t.Errorf("Credentials = %+v", file.Credentials)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	file, err := loadFile(Flags{Server: "mem://lobby"})
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	cfg, err := file.SessionConfig()
	if err != nil {
		t.Fatalf("SessionConfig: %v", err)
	}
	if !cfg.AutoReconnect {
		t.Error("expected auto reconnect by default")
	}
}
