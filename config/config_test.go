package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaults(t *testing.T) {
	conf, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if conf.Resolver.InterContractDelay != 1500*time.Millisecond {
		t.Fatalf("inter contract delay = %s", conf.Resolver.InterContractDelay)
	}
	if conf.Resolver.CallTimeout != 15*time.Second || conf.Resolver.BatchSize != 10 {
		t.Fatalf("unexpected resolver defaults %+v", conf.Resolver)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db:
  type: postgres
  dsn: postgres://localhost/vesting
http:
  port: "8080"
resolver:
  inter_contract_delay: 250ms
  batch_size: 3
nodes:
  base:
    local: http://localhost:8545
networks:
  - name: base-fork
    chain_id: 31337
strategies:
  - address: "0x00000000000000000000000000000000000000c1"
    kind: direct
    method: getVestingListByHolder
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	conf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if conf.DB.Type != "postgres" || conf.HTTP.Port != "8080" {
		t.Fatalf("unexpected config %+v", conf)
	}
	if conf.Resolver.InterContractDelay != 250*time.Millisecond || conf.Resolver.BatchSize != 3 {
		t.Fatalf("unexpected resolver section %+v", conf.Resolver)
	}
	if conf.Resolver.CallTimeout != 15*time.Second {
		t.Fatalf("unset values keep their default, got %s", conf.Resolver.CallTimeout)
	}
	if conf.Nodes["base"]["local"] != "http://localhost:8545" {
		t.Fatalf("unexpected nodes %+v", conf.Nodes)
	}
	if len(conf.Networks) != 1 || conf.Networks[0].ChainID != 31337 {
		t.Fatalf("unexpected networks %+v", conf.Networks)
	}
	if len(conf.Strategies) != 1 || conf.Strategies[0].Method != "getVestingListByHolder" {
		t.Fatalf("unexpected strategies %+v", conf.Strategies)
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"VESTINGSCOPE_DB_TYPE":              "postgres",
		"VESTINGSCOPE_CALL_TIMEOUT":         "5s",
		"VESTINGSCOPE_BATCH_SIZE":           "20",
		"VESTINGSCOPE_PRIMARY_API_KEY":      "key",
		"VESTINGSCOPE_INTER_CONTRACT_DELAY": "0s",
	}
	conf := Default()
	if err := conf.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if conf.DB.Type != "postgres" || conf.Resolver.CallTimeout != 5*time.Second || conf.Resolver.BatchSize != 20 {
		t.Fatalf("unexpected config %+v", conf)
	}
	if conf.Explorers.PrimaryAPIKey != "key" || conf.Resolver.InterContractDelay != 0 {
		t.Fatalf("unexpected config %+v", conf)
	}

	env["VESTINGSCOPE_BATCH_SIZE"] = "ten"
	if err := conf.applyEnv(func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected an error for a malformed batch size")
	}
}

func TestValidate(t *testing.T) {
	conf := Default()
	conf.DB.Type = "mongodb"
	if err := conf.Validate(); err == nil {
		t.Fatalf("expected an unsupported db type to fail")
	}
	conf = Default()
	conf.Resolver.BatchSize = 0
	if err := conf.Validate(); err == nil {
		t.Fatalf("expected a zero batch size to fail")
	}
}

func TestLogger(t *testing.T) {
	l, err := LogConfig{Level: "debug", Format: "json"}.Logger()
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected a json formatter")
	}
	if _, err := (LogConfig{Level: "loud"}).Logger(); err == nil {
		t.Fatalf("expected an invalid level to fail")
	}
}
