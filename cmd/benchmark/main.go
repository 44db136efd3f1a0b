package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/voucherfront/internal/domain"
	"github.com/punchamoorthee/voucherfront/internal/logger"
	"github.com/punchamoorthee/voucherfront/internal/store"
	"go.uber.org/zap"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	invalidPct  float64
	outFile     string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Session created
	fail400       uint64 // Invalid voucher
	fail500       uint64 // Provider not configured
	fail502       uint64 // Provider rejected or unreachable
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:4000", "Storefront base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.Float64Var(&invalidPct, "invalid", 0.05, "Share of requests that use an unknown voucher id")
	flag.StringVar(&outFile, "out", "", "Also write the JSON summary to this file")
}

func main() {
	flag.Parse()
	log, err := logger.New("info", "development")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ids := voucherIDs(store.Default().List())
	log.Info("starting benchmark",
		zap.String("workload", workload),
		zap.Int("workers", concurrency),
		zap.Duration("duration", duration))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, ids)
	}

	wg.Wait()
	if err := printResults(time.Since(start)); err != nil {
		log.Error("write results", zap.Error(err))
	}
}

func worker(wg *sync.WaitGroup, start time.Time, ids []string) {
	defer wg.Done()
	client := &http.Client{Timeout: 15 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for time.Since(start) < duration {
		body, _ := json.Marshal(domain.CheckoutRequest{ID: pickVoucher(rng, ids)})

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/checkout", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusBadRequest:
			atomic.AddUint64(&fail400, 1)
		case http.StatusInternalServerError:
			atomic.AddUint64(&fail500, 1)
		case http.StatusBadGateway:
			atomic.AddUint64(&fail502, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func voucherIDs(vs []domain.Voucher) []string {
	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.ID)
	}
	return ids
}

func pickVoucher(rng *rand.Rand, ids []string) string {
	if rng.Float64() < invalidPct {
		return "voucher-unknown"
	}
	// Hotspot: 90% of traffic goes to the first voucher
	if workload == "hotspot" && rng.Float32() < 0.90 {
		return ids[0]
	}
	return ids[rng.Intn(len(ids))]
}

func printResults(d time.Duration) error {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)

	var successRate float64
	if total > 0 {
		successRate = float64(s200) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":         workload,
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_rps":   float64(total) / d.Seconds(),
		"sessions_created": s200,
		"invalid_voucher":  atomic.LoadUint64(&fail400),
		"not_configured":   atomic.LoadUint64(&fail500),
		"upstream_errors":  atomic.LoadUint64(&fail502),
		"success_rate_pct": successRate,
		"errors":           atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if outFile == "" {
		return nil
	}
	file, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(results)
}
