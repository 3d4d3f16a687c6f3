// Package config loads session client configuration files.
//
// YAML (.yaml, .yml) and TOML (.toml) files share one schema. Durations are
// strings in time.ParseDuration syntax. Settings left out keep the
// defaults of session.DefaultConfig.
//
//	server:
//	  url: wss://lobby.example/ws
//	  name: desk-7
//	heartbeat:
//	  interval: 10s
//	  adaptive: true
//	reconnect:
//	  initial_delay: 1s
//	  max_delay: 30s
//	  max_attempts: 5
package config
