package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearGameserverEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GAMESERVER_ADDR",
		"GAMESERVER_ALLOWED_ORIGINS",
		"GAMESERVER_MAX_PAYLOAD_BYTES",
		"GAMESERVER_PING_INTERVAL",
		"GAMESERVER_MAX_CLIENTS",
		"GAMESERVER_TLS_CERT",
		"GAMESERVER_TLS_KEY",
		"GAMESERVER_LOG_LEVEL",
		"GAMESERVER_LOG_PATH",
		"GAMESERVER_LOG_MAX_SIZE_MB",
		"GAMESERVER_LOG_MAX_BACKUPS",
		"GAMESERVER_LOG_MAX_AGE_DAYS",
		"GAMESERVER_LOG_COMPRESS",
		"GAMESERVER_ADMIN_TOKEN",
		"GAMESERVER_REPLAY_DUMP_WINDOW",
		"GAMESERVER_REPLAY_DUMP_BURST",
		"GAMESERVER_STATE_PATH",
		"GAMESERVER_STATE_INTERVAL",
		"GAMESERVER_TICK_RATE_HZ",
		"GAMESERVER_BOT_TARGET_POPULATION",
		"GAMESERVER_AOI_RADIUS",
		"GAMESERVER_BANDWIDTH_LIMIT_BPS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearGameserverEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if cfg.MaxClients != DefaultMaxClients {
		t.Fatalf("expected default max clients %d, got %d", DefaultMaxClients, cfg.MaxClients)
	}
	if cfg.TLSCertPath != "" || cfg.TLSKeyPath != "" {
		t.Fatalf("expected TLS paths to be empty, got cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected admin token to be empty by default")
	}
	if cfg.ReplayDumpWindow != DefaultReplayDumpWindow {
		t.Fatalf("expected default replay dump window %v, got %v", DefaultReplayDumpWindow, cfg.ReplayDumpWindow)
	}
	if cfg.ReplayDumpBurst != DefaultReplayDumpBurst {
		t.Fatalf("expected default replay dump burst %d, got %d", DefaultReplayDumpBurst, cfg.ReplayDumpBurst)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != DefaultLogMaxBackups {
		t.Fatalf("expected default log max backups %d, got %d", DefaultLogMaxBackups, cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != DefaultLogMaxAgeDays {
		t.Fatalf("expected default log max age %d, got %d", DefaultLogMaxAgeDays, cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
	if cfg.StateSnapshotPath != "" {
		t.Fatalf("expected state snapshot path to be empty by default")
	}
	if cfg.StateSnapshotInterval != DefaultStateSnapshotInterval {
		t.Fatalf("expected default state snapshot interval %v, got %v", DefaultStateSnapshotInterval, cfg.StateSnapshotInterval)
	}
	if cfg.Simulation.TickRateHz != DefaultTickRateHz {
		t.Fatalf("expected default tick rate %d, got %d", DefaultTickRateHz, cfg.Simulation.TickRateHz)
	}
	if cfg.Simulation.AoIRadius != DefaultAoIRadius {
		t.Fatalf("expected default AoI radius %v, got %v", DefaultAoIRadius, cfg.Simulation.AoIRadius)
	}
	if cfg.Simulation.PlayerShardCount != DefaultPlayerShardCount {
		t.Fatalf("expected default shard count %d, got %d", DefaultPlayerShardCount, cfg.Simulation.PlayerShardCount)
	}
	if cfg.Simulation.BotTargetPopulation != DefaultBotTargetPopulation {
		t.Fatalf("expected default bot target population %d, got %d", DefaultBotTargetPopulation, cfg.Simulation.BotTargetPopulation)
	}
	if cfg.Simulation.BandwidthLimitBytesPerSecond != DefaultBandwidthLimitBytesPerSecond {
		t.Fatalf("expected default bandwidth limit %v, got %v", DefaultBandwidthLimitBytesPerSecond, cfg.Simulation.BandwidthLimitBytesPerSecond)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearGameserverEnv(t)
	t.Setenv("GAMESERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("GAMESERVER_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("GAMESERVER_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("GAMESERVER_PING_INTERVAL", "45s")
	t.Setenv("GAMESERVER_MAX_CLIENTS", "12")
	t.Setenv("GAMESERVER_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("GAMESERVER_TLS_KEY", "/tmp/key.pem")
	t.Setenv("GAMESERVER_LOG_LEVEL", "debug")
	t.Setenv("GAMESERVER_LOG_PATH", "/var/log/gameserver.log")
	t.Setenv("GAMESERVER_LOG_MAX_SIZE_MB", "512")
	t.Setenv("GAMESERVER_LOG_MAX_BACKUPS", "4")
	t.Setenv("GAMESERVER_LOG_MAX_AGE_DAYS", "2")
	t.Setenv("GAMESERVER_LOG_COMPRESS", "false")
	t.Setenv("GAMESERVER_ADMIN_TOKEN", "s3cret")
	t.Setenv("GAMESERVER_REPLAY_DUMP_WINDOW", "2m")
	t.Setenv("GAMESERVER_REPLAY_DUMP_BURST", "3")
	t.Setenv("GAMESERVER_STATE_PATH", "/var/run/gameserver/state.json")
	t.Setenv("GAMESERVER_STATE_INTERVAL", "15s")
	t.Setenv("GAMESERVER_TICK_RATE_HZ", "60")
	t.Setenv("GAMESERVER_BOT_TARGET_POPULATION", "6")
	t.Setenv("GAMESERVER_AOI_RADIUS", "750")
	t.Setenv("GAMESERVER_BANDWIDTH_LIMIT_BPS", "12000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" || cfg.AllowedOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != 2048 {
		t.Fatalf("expected overridden max payload, got %d", cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval.String() != "45s" {
		t.Fatalf("expected ping interval 45s, got %v", cfg.PingInterval)
	}
	if cfg.MaxClients != 12 {
		t.Fatalf("expected max clients 12, got %d", cfg.MaxClients)
	}
	if cfg.TLSCertPath != "/tmp/cert.pem" || cfg.TLSKeyPath != "/tmp/key.pem" {
		t.Fatalf("unexpected TLS paths cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Path != "/var/log/gameserver.log" {
		t.Fatalf("unexpected log path %q", cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != 512 {
		t.Fatalf("expected log max size 512, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 4 {
		t.Fatalf("expected log max backups 4, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != 2 {
		t.Fatalf("expected log max age 2, got %d", cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("expected overridden admin token, got %q", cfg.AdminToken)
	}
	if cfg.ReplayDumpWindow != 2*time.Minute {
		t.Fatalf("expected replay dump window 2m, got %v", cfg.ReplayDumpWindow)
	}
	if cfg.ReplayDumpBurst != 3 {
		t.Fatalf("expected replay dump burst 3, got %d", cfg.ReplayDumpBurst)
	}
	if cfg.StateSnapshotPath != "/var/run/gameserver/state.json" {
		t.Fatalf("unexpected state snapshot path %q", cfg.StateSnapshotPath)
	}
	if cfg.StateSnapshotInterval != 15*time.Second {
		t.Fatalf("expected state snapshot interval 15s, got %v", cfg.StateSnapshotInterval)
	}
	if cfg.Simulation.TickRateHz != 60 {
		t.Fatalf("expected overridden tick rate 60, got %d", cfg.Simulation.TickRateHz)
	}
	if cfg.Simulation.BotTargetPopulation != 6 {
		t.Fatalf("expected bot target population 6, got %d", cfg.Simulation.BotTargetPopulation)
	}
	if cfg.Simulation.AoIRadius != 750 {
		t.Fatalf("expected overridden AoI radius 750, got %v", cfg.Simulation.AoIRadius)
	}
	if cfg.Simulation.BandwidthLimitBytesPerSecond != 12000 {
		t.Fatalf("expected overridden bandwidth limit 12000, got %v", cfg.Simulation.BandwidthLimitBytesPerSecond)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearGameserverEnv(t)
	t.Setenv("GAMESERVER_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("GAMESERVER_PING_INTERVAL", "abc")
	t.Setenv("GAMESERVER_MAX_CLIENTS", "-1")
	t.Setenv("GAMESERVER_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("GAMESERVER_TLS_KEY", "")
	t.Setenv("GAMESERVER_LOG_MAX_SIZE_MB", "-1")
	t.Setenv("GAMESERVER_LOG_MAX_BACKUPS", "-2")
	t.Setenv("GAMESERVER_LOG_MAX_AGE_DAYS", "-3")
	t.Setenv("GAMESERVER_LOG_COMPRESS", "notabool")
	t.Setenv("GAMESERVER_REPLAY_DUMP_WINDOW", "-")
	t.Setenv("GAMESERVER_REPLAY_DUMP_BURST", "0")
	t.Setenv("GAMESERVER_STATE_INTERVAL", "-1s")
	t.Setenv("GAMESERVER_TICK_RATE_HZ", "0")
	t.Setenv("GAMESERVER_AOI_RADIUS", "-1")
	t.Setenv("GAMESERVER_BANDWIDTH_LIMIT_BPS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"GAMESERVER_MAX_PAYLOAD_BYTES",
		"GAMESERVER_PING_INTERVAL",
		"GAMESERVER_MAX_CLIENTS",
		"GAMESERVER_TLS_CERT",
		"GAMESERVER_LOG_MAX_SIZE_MB",
		"GAMESERVER_LOG_MAX_BACKUPS",
		"GAMESERVER_LOG_MAX_AGE_DAYS",
		"GAMESERVER_LOG_COMPRESS",
		"GAMESERVER_REPLAY_DUMP_WINDOW",
		"GAMESERVER_REPLAY_DUMP_BURST",
		"GAMESERVER_STATE_INTERVAL",
		"GAMESERVER_TICK_RATE_HZ",
		"GAMESERVER_AOI_RADIUS",
		"GAMESERVER_BANDWIDTH_LIMIT_BPS",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadIgnoresEmptyAllowedOrigins(t *testing.T) {
	clearGameserverEnv(t)
	t.Setenv("GAMESERVER_ALLOWED_ORIGINS", " , ,https://ok.example, ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://ok.example" {
		t.Fatalf("expected single cleaned origin, got %#v", cfg.AllowedOrigins)
	}
}

func TestLoadReturnsErrorWhenEnvUnsetAfterOverride(t *testing.T) {
	clearGameserverEnv(t)
	t.Setenv("GAMESERVER_MAX_PAYLOAD_BYTES", "1024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxPayloadBytes != 1024 {
		t.Fatalf("expected overridden payload value, got %d", cfg.MaxPayloadBytes)
	}
}

func TestLoadAllowsUnlimitedClients(t *testing.T) {
	clearGameserverEnv(t)
	t.Setenv("GAMESERVER_MAX_CLIENTS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxClients != 0 {
		t.Fatalf("expected zero to disable limit, got %d", cfg.MaxClients)
	}
}

func TestLoadWithCustomTLSPair(t *testing.T) {
	clearGameserverEnv(t)
	certFile := createTempFile(t)
	keyFile := createTempFile(t)

	t.Setenv("GAMESERVER_TLS_CERT", certFile)
	t.Setenv("GAMESERVER_TLS_KEY", keyFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.TLSCertPath != certFile || cfg.TLSKeyPath != keyFile {
		t.Fatalf("unexpected TLS pair cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
}

func createTempFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "gameserver-config-test-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { _ = os.Remove(name) })
	return name
}
