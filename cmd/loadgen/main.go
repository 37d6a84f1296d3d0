// Command loadgen drives the encode endpoints with a Zipf-distributed mix of
// BBOX filters and reports latency and cache tier counts.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/httpclient"
)

type Config struct {
	BaseURL        string
	Format         string
	TypeName       string
	GeomAttr       string
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	BoxCount       int
	OutputPrefix   string
	RequestTimeout time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:8090", "Filter service base URL")
	flag.StringVar(&cfg.Format, "format", "ogc", "Encode format: ogc|cql")
	flag.StringVar(&cfg.TypeName, "type", "demo:places", "Feature type name")
	flag.StringVar(&cfg.GeomAttr, "geom", "the_geom", "Geometry attribute")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.BoxCount, "boxes", 128, "Distinct boxes in pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/encode", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()
	return cfg
}

func main() {
	cfg := loadConfig()
	if cfg.Format != "ogc" && cfg.Format != "cql" {
		log.Fatalf("format must be ogc or cql, got %q", cfg.Format)
	}
	if cfg.BoxCount <= 0 || cfg.Concurrency <= 0 {
		log.Fatalf("boxes and concurrency must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := fmt.Sprintf("%s_%s_%s", cfg.OutputPrefix, cfg.Format, time.Now().UTC().Format("20060102_150405Z"))

	seed := time.Now().UnixNano()
	bounds := makeBounds(cfg.BoxCount, rand.New(rand.NewSource(seed)))
	bodies := make([][]byte, len(bounds))
	for i, b := range bounds {
		body, err := requestBody(cfg.TypeName, cfg.GeomAttr, i, b)
		if err != nil {
			log.Fatalf("build request %d: %v", i, err)
		}
		bodies[i] = body
	}
	target := strings.TrimRight(cfg.BaseURL, "/") + "/encode/" + cfg.Format

	client := httpclient.NewOutbound(cfg.RequestTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samples := make(chan sample, 4096)
	results := make(chan aggregate, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "cache", "error", "box_idx"})
		var agg aggregate
		for s := range samples {
			agg.add(s)
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				strconv.Itoa(s.Status),
				s.Cache,
				s.ErrorMsg,
				strconv.Itoa(s.BoxIndex),
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		results <- agg
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) boxes=%d",
		target, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, cfg.BoxCount)

	imax := uint64(len(bodies)) - 1
	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for id := range cfg.Concurrency {
		go func() {
			defer wg.Done()
			zipf := rand.NewZipf(rand.New(rand.NewSource(seed+int64(id)+1)), cfg.ZipfS, cfg.ZipfV, imax)
			for ctx.Err() == nil {
				v := zipf.Uint64()
				if v > uint64(math.MaxInt) || int(v) >= len(bodies) {
					continue
				}
				s := fire(ctx, client, target, bodies[v])
				s.BoxIndex = int(v)
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samples)
	}()

	agg := <-results
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	sum := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		CacheTiers:    agg.tiers,
		HitRatio:      agg.hitRatio(),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Boxes:         cfg.BoxCount,
		TargetURL:     target,
		Format:        cfg.Format,
	}

	if f, err := os.Create(filepath.Clean(jsonPath)); err == nil {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		_ = f.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.2fms p95=%.2fms p99=%.2fms hit=%.2f",
		sum.TotalRequests, sum.SuccessCount, sum.ErrorCount, sum.ThroughputRPS, sum.P50Ms, sum.P95Ms, sum.P99Ms, sum.HitRatio)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

func fire(ctx context.Context, client *http.Client, target string, body []byte) sample {
	start := time.Now()
	s := sample{Timestamp: start}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	s.Latency = time.Since(start)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	s.Status = resp.StatusCode
	s.Cache = resp.Header.Get("X-Cache")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}
