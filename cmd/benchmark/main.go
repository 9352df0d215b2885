// Benchmark drives the payment-notify endpoint with signed notifications to
// measure webhook throughput and verify the idempotent apply under load: the
// "replay" workload redelivers one order's notification from all workers, so
// at most one delivery may credit.
package main

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	outTradeNo  string
	money       string
)

// Metrics
var (
	totalRequests uint64
	acked         uint64 // "success" acknowledgements (includes replay no-ops)
	rejected      uint64 // "fail" responses
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "replay", "Workload type: replay | unknown")
	flag.StringVar(&outTradeNo, "order", "", "Existing pending out_trade_no for the replay workload")
	flag.StringVar(&money, "money", "20", "Order amount for the replay workload")
}

func main() {
	flag.Parse()

	key := os.Getenv("ZPAY_PKEY")
	if key == "" {
		log.Fatal("ZPAY_PKEY is required to sign notifications")
	}
	if workload == "replay" && outTradeNo == "" {
		log.Fatal("-order is required for the replay workload")
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, key)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, key string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		params := notification(key)

		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}

		resp, err := client.PostForm(targetURL+"/api/v1/payment/notify", values)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 200:
			atomic.AddUint64(&acked, 1)
		case 400:
			atomic.AddUint64(&rejected, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func notification(key string) map[string]string {
	order := outTradeNo
	if workload == "unknown" {
		order = fmt.Sprintf("bench%014d", rand.Int63n(1e14))
	}

	params := map[string]string{
		"out_trade_no": order,
		"trade_no":     fmt.Sprintf("gw-%d", time.Now().UnixNano()),
		"trade_status": "TRADE_SUCCESS",
		"money":        money,
		"sign_type":    "MD5",
	}
	params["sign"] = sign(params, key)
	return params
}

// sign mirrors the gateway's canonicalization contract.
func sign(params map[string]string, key string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&") + key))
	return hex.EncodeToString(sum[:])
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&acked)
	rej := atomic.LoadUint64(&rejected)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": tps,
		"acknowledged":   ok,
		"rejected":       rej,
		"errors":         fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	if err := json.NewEncoder(file).Encode(results); err != nil {
		log.Printf("Could not write %s: %v", filename, err)
	}
}
