package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	In          string
	Out         string
	Diagnostics string
	LogLevel    string

	Tracked            []string
	UniswapV1Exchanges map[string]string
	ReportUndecoded    bool
	Workers            int

	RPCURL      string
	RedisAddr   string
	RedisTTL    time.Duration
	PgDSN       string
	MetricsAddr string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"in":          "./data/transactions.jsonl",
		"out":         "./data/decoded_events.jsonl",
		"diagnostics": "./data/decode_diagnostics.jsonl",
		"workers":     4,
		"redis-ttl":   24 * time.Hour,
		"log-level":   "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		In:                 v.GetString("in"),
		Out:                v.GetString("out"),
		Diagnostics:        v.GetString("diagnostics"),
		LogLevel:           v.GetString("log-level"),
		Tracked:            getStringSlice(v, "tracked"),
		UniswapV1Exchanges: getStringMap(v, "uniswap-v1-exchanges"),
		ReportUndecoded:    v.GetBool("report-undecoded"),
		Workers:            v.GetInt("workers"),
		RPCURL:             v.GetString("rpc"),
		RedisAddr:          v.GetString("redis-addr"),
		RedisTTL:           v.GetDuration("redis-ttl"),
		PgDSN:              v.GetString("pg-dsn"),
		MetricsAddr:        v.GetString("metrics-addr"),
	}
	if cfg.Workers <= 0 {
		return DecodeConfig{}, fmt.Errorf("workers must be greater than zero")
	}

	return cfg, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	input = strings.Trim(strings.TrimSpace(input), "[]")
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
