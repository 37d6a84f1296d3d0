package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type LogCfg struct {
	Level   string
	Console bool
	SampleN int
}

type CacheCfg struct {
	RedisEnabled bool
	RedisAddr    string
	TTL          time.Duration
	OpTimeout    time.Duration
	MemoSize     int
	// AdmitScore is the hotness a key needs before it is written to Redis;
	// zero writes every encoding.
	AdmitScore   float64
	HotHalfLife  time.Duration
	HotLogSample float64
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type PurgeCfg struct {
	Enabled bool
	Topic   string
	GroupID string
	// Oldest starts a new consumer group at the oldest retained offset.
	Oldest bool
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr               string
	Log                LogCfg
	GeoServerURL       string
	DefaultWFSVersion  string
	UpstreamTimeout    time.Duration
	H3Res              int
	Cache              CacheCfg
	Events             EventsCfg
	Purge              PurgeCfg
	Metrics            MetricsCfg
	MaxRequestBodySize int64
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	memo := getint("MEMO_SIZE", 4096)
	if memo < 0 {
		memo = 0
	}

	return Config{
		Addr: getenv("ADDR", ":8090"),
		Log: LogCfg{
			Level:   getenv("LOG_LEVEL", "info"),
			Console: getbool("LOG_CONSOLE", false),
			SampleN: getint("LOG_SAMPLE_N", 0),
		},
		GeoServerURL:      getenv("GEOSERVER_URL", "http://localhost:8080/geoserver"),
		DefaultWFSVersion: getenv("WFS_DEFAULT_VERSION", "2.0"),
		UpstreamTimeout:   getduration("UPSTREAM_TIMEOUT", 15*time.Second),
		H3Res:             res,
		Cache: CacheCfg{
			RedisEnabled: getbool("REDIS_ENABLED", false),
			RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
			TTL:          getduration("CACHE_TTL", 5*time.Minute),
			OpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			MemoSize:     memo,
			AdmitScore:   getfloat("CACHE_ADMIT_SCORE", 0),
			HotHalfLife:  getduration("HOT_HALF_LIFE", time.Minute),
			HotLogSample: getfloat("HOT_LOG_SAMPLE", 0.01),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "filter-encode-events"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Purge: PurgeCfg{
			Enabled: getbool("PURGE_ENABLED", false),
			Topic:   getenv("PURGE_TOPIC", "filter-cache-purge"),
			GroupID: getenv("PURGE_GROUP_ID", "filter-cache-purger"),
			Oldest:  getbool("PURGE_FROM_OLDEST", false),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
		MaxRequestBodySize: int64(getint("MAX_BODY_BYTES", 1<<20)),
	}
}

// BrokerList splits the comma-separated KAFKA_BROKERS value.
func (c EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
