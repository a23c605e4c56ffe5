// main.go - Load generator for the public tracking endpoint
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	v1 "agentlinker/api/v1"
	"agentlinker/internal/analytics"
)

// Browser-like so beacons are not dropped as crawler traffic.
const perftestUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"

// PerfConfig holds the configuration for the performance test
type PerfConfig struct {
	BaseURL      string
	AgentID      uint
	Concurrency  int
	Duration     time.Duration
	EventsPerSec int
	Timeout      time.Duration
}

// PerfStats holds statistics about the performance test
type PerfStats struct {
	TotalRequests  int64
	FailedRequests int64

	mu            sync.Mutex
	statusCodes   map[int]int64
	responseTimes []time.Duration
	start         time.Time
	end           time.Time
}

// Result captures the result of a single request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Error      error
}

var sources = []string{"instagram", "facebook", "linkedin", "email", ""}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the API")
	agentID := flag.Uint("agent", 1, "agent id to send events for")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	eventsPerSec := flag.Int("rate", 0, "Target events per second (0 = unlimited)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := &PerfConfig{
		BaseURL:      *baseURL,
		AgentID:      uint(*agentID),
		Concurrency:  *concurrency,
		Duration:     *duration,
		EventsPerSec: *eventsPerSec,
		Timeout:      *timeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		fmt.Printf("Received signal %v, shutting down...\n", sig)
		cancel()
	}()

	fmt.Printf("Sending beacons to %s/api/track for agent %d with %d clients for %v\n",
		cfg.BaseURL, cfg.AgentID, cfg.Concurrency, cfg.Duration)

	stats := &PerfStats{statusCodes: make(map[int]int64), start: time.Now()}

	testCtx, testCancel := context.WithTimeout(ctx, cfg.Duration)
	defer testCancel()

	for result := range runTest(testCtx, cfg, logger) {
		stats.record(result)
	}
	stats.end = time.Now()

	stats.print(os.Stdout)
}

// runTest starts the workers and returns a channel for their results
func runTest(ctx context.Context, cfg *PerfConfig, logger *slog.Logger) <-chan Result {
	results := make(chan Result, cfg.Concurrency*10)
	var wg sync.WaitGroup

	var interval time.Duration
	if cfg.EventsPerSec > 0 {
		perWorker := float64(cfg.EventsPerSec) / float64(cfg.Concurrency)
		interval = time.Duration(float64(time.Second) / perWorker)
		logger.Info("Rate limiting enabled", slog.Int("eventsPerSec", cfg.EventsPerSec), slog.Duration("workerInterval", interval))
	}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: cfg.Timeout}
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

			var ticker *time.Ticker
			if interval > 0 {
				ticker = time.NewTicker(interval)
				defer ticker.Stop()
			}

			for {
				if ticker != nil {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				} else if ctx.Err() != nil {
					return
				}

				result := sendBeacon(ctx, client, cfg, rng)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func sendBeacon(ctx context.Context, client *http.Client, cfg *PerfConfig, rng *rand.Rand) Result {
	params := v1.TrackParams{
		UserID:    cfg.AgentID,
		EventType: string(analytics.EventPageView),
		Source:    sources[rng.IntN(len(sources))],
	}
	if rng.IntN(4) == 0 {
		params.EventType = string(analytics.EventLinkClick)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return Result{Error: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/track", bytes.NewReader(body))
	if err != nil {
		return Result{Error: err}
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("User-Agent", perftestUserAgent)
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", rng.IntN(254)+1))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Result{Duration: time.Since(start), Error: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{Duration: time.Since(start), StatusCode: resp.StatusCode}
}

func (s *PerfStats) record(r Result) {
	atomic.AddInt64(&s.TotalRequests, 1)
	if r.Error != nil || r.StatusCode != http.StatusOK {
		atomic.AddInt64(&s.FailedRequests, 1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Error == nil {
		s.statusCodes[r.StatusCode]++
		s.responseTimes = append(s.responseTimes, r.Duration)
	}
}

func (s *PerfStats) percentile(p float64) time.Duration {
	if len(s.responseTimes) == 0 {
		return 0
	}
	idx := int(float64(len(s.responseTimes)-1) * p)
	return s.responseTimes[idx]
}

func (s *PerfStats) print(out io.Writer) {
	sort.Slice(s.responseTimes, func(i, j int) bool { return s.responseTimes[i] < s.responseTimes[j] })
	elapsed := s.end.Sub(s.start)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n=== Results ===")
	fmt.Fprintf(w, "Duration:\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests:\t%d\n", s.TotalRequests)
	fmt.Fprintf(w, "Failed:\t%d\n", s.FailedRequests)
	if elapsed > 0 {
		fmt.Fprintf(w, "Throughput:\t%.1f req/s\n", float64(s.TotalRequests)/elapsed.Seconds())
	}
	fmt.Fprintf(w, "p50:\t%v\n", s.percentile(0.50))
	fmt.Fprintf(w, "p95:\t%v\n", s.percentile(0.95))
	fmt.Fprintf(w, "p99:\t%v\n", s.percentile(0.99))

	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "HTTP %d:\t%d\n", code, s.statusCodes[code])
	}
	w.Flush()
}
