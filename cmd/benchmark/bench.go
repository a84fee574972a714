package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nulzo/chat-relay/internal/cli"
	"github.com/nulzo/chat-relay/internal/platform/logger"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
)

const (
	mockPort  = 9091
	appPort   = 8081
	debugAddr = "127.0.0.1:6060"
)

var (
	// split mid-line on purpose so the relay's line buffering is exercised
	openAIChunks = [][]byte{
		[]byte(`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n"),
		[]byte(`data: {"choices":[{"delta":{"content":"Bench"}}]}` + "\n\n" + `data: {"choi`),
		[]byte(`ces":[{"delta":{"content":"mark"}}]}` + "\n\n"),
		[]byte(`: keep-alive` + "\n\n" + `data: {"choices":[{"delta":{"content":" safe"}}]}` + "\n\n"),
		[]byte("data: [DONE]\n\n"),
	}
	anthropicChunks = [][]byte{
		[]byte("event: message_start\ndata: {\"type\":\"message_start\"}\n\n"),
		[]byte("event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Bench\"}}\n\nevent: content_blo"),
		[]byte("ck_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"mark\"}}\n\n"),
		[]byte("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"),
	}
	openAIUnary    = []byte(`{"id":"bench-123","choices":[{"message":{"role":"assistant","content":"Hello"}}]}`)
	anthropicUnary = []byte(`{"id":"msg_bench","content":[{"type":"text","text":"Hello"}]}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use /api/chat/stream instead of /api/chat")
	chaos := flag.Bool("chaos", false, "Cut streams at random points while the attack runs")
	mock := flag.Bool("mock", false, "Use the relay's simulated answers instead of the mock upstream")
	mode := flag.String("mode", "general", "Relay mode to request (anthropic routes to the anthropic mock)")
	flag.Parse()

	log := logger.Get()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startMockUpstream(log)

	fmt.Println(cli.Arrow(), "Building relay...")
	build := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		log.Fatal("Build failed", zap.Error(err))
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0o644); err != nil {
		log.Fatal("Writing bench config failed", zap.Error(err))
	}
	defer os.Remove(configFile)

	fmt.Println(cli.Arrow(), "Starting relay...")
	server := exec.Command("./bin/server")
	server.Env = append(os.Environ(),
		"CONFIG_FILE="+configFile,
		fmt.Sprintf("SERVER_PORT=%d", appPort),
		"SERVER_DEBUG_ADDR="+debugAddr,
		fmt.Sprintf("RELAY_MOCK_MODE=%t", *mock),
		"LOG_LEVEL=error",
	)

	serverLog, err := os.Create("bench_server.log")
	if err != nil {
		log.Fatal("Creating server log failed", zap.Error(err))
	}
	defer serverLog.Close()
	server.Stdout = serverLog
	server.Stderr = serverLog

	if err := server.Start(); err != nil {
		log.Fatal("Starting relay failed", zap.Error(err))
	}
	defer func() { _ = server.Process.Kill() }()

	readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
	err = waitForRelay(readyCtx, fmt.Sprintf("http://localhost:%d/health", appPort))
	readyCancel()
	if err != nil {
		log.Fatal("Relay never became healthy, see bench_server.log", zap.Error(err))
	}
	fmt.Println(cli.CheckMark(), "Relay is healthy")

	go watchHeap(ctx, log)

	url := fmt.Sprintf("http://localhost:%d/api/chat", appPort)
	kind := "Unary"
	if *stream {
		url += "/stream"
		kind = "Streaming"
	}
	body := fmt.Sprintf(`{"prompt":"Hello","mode":%q}`, *mode)

	var stats *chaosStats
	if *chaos {
		disrupters := *rate / 10
		if disrupters < 5 {
			disrupters = 5
		}
		if disrupters > 50 {
			disrupters = 50
		}
		fmt.Println(cli.WarningSign(), fmt.Sprintf("Chaos enabled: %d clients cutting streams after a random number of frames", disrupters))
		stats = startChaos(ctx, fmt.Sprintf("http://localhost:%d/api/chat/stream", appPort), *mode, disrupters)
	}

	fmt.Printf("%s Running %s benchmark against mode %q: %s, %d req/s\n", cli.Arrow(), kind, *mode, *duration, *rate)

	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = url
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Benchmark-Start": []string{strconv.FormatInt(time.Now().UnixNano(), 10)},
		}
		return nil
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "relay") {
		metrics.Add(res)
	}
	metrics.Close()
	cancel()

	report(&metrics, stats)
}

func report(metrics *vegeta.Metrics, stats *chaosStats) {
	fmt.Println("--------------------------------------------------")
	fmt.Println("p99:        ", metrics.Latencies.P99)
	fmt.Println("Mean:       ", metrics.Latencies.Mean)
	fmt.Println("Max:        ", metrics.Latencies.Max)
	fmt.Printf("Success:     %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:  %.2f req/s\n", metrics.Throughput)
	if stats != nil {
		fmt.Printf("Chaos:       %d cut mid-stream, %d finished, %d error frames\n",
			stats.cut.Load(), stats.finished.Load(), stats.errored.Load())
	}
	fmt.Println("--------------------------------------------------")

	seen := make(map[string]bool)
	for _, msg := range metrics.Errors {
		if len(seen) == 5 {
			break
		}
		if !seen[msg] {
			fmt.Println(cli.CrossMark(), msg)
			seen[msg] = true
		}
	}
}

type chaosStats struct {
	cut      atomic.Int64
	finished atomic.Int64
	errored  atomic.Int64
}

// startChaos runs clients that read a random number of SSE frames and then
// hang up, so the relay has to abandon upstream streams mid-flight.
func startChaos(ctx context.Context, url, mode string, clients int) *chaosStats {
	stats := &chaosStats{}
	payload := []byte(fmt.Sprintf(`{"prompt":"Chaos","mode":%q}`, mode))

	for i := 0; i < clients; i++ {
		go func() {
			client := &http.Client{}
			for ctx.Err() == nil {
				chaosRequest(ctx, client, url, payload, rand.Intn(4), stats)
				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}()
	}
	return stats
}

func chaosRequest(ctx context.Context, client *http.Client, url string, payload []byte, keep int, stats *chaosStats) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	frames := 0
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Done  bool   `json:"done"`
			Error string `json:"error"`
		}
		_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame)
		switch {
		case frame.Error != "":
			stats.errored.Add(1)
			return
		case frame.Done:
			stats.finished.Add(1)
			return
		}
		frames++
		if frames > keep {
			stats.cut.Add(1)
			return
		}
	}
}

// startMockUpstream answers both provider families the relay speaks.
func startMockUpstream(log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", mockHandler(log, openAIChunks, openAIUnary))
	mux.HandleFunc("/v1/messages", mockHandler(log, anthropicChunks, anthropicUnary))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux); err != nil {
		log.Error("Mock upstream stopped", zap.Error(err))
	}
}

func mockHandler(log *zap.Logger, chunks [][]byte, unary []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if start, err := strconv.ParseInt(r.Header.Get("X-Benchmark-Start"), 10, 64); err == nil && rand.Intn(100) == 0 {
			log.Debug("Relay overhead", zap.Duration("latency", time.Duration(time.Now().UnixNano()-start)))
		}

		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			time.Sleep(10 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(unary)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			_, _ = w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// watchHeap prints the relay's heap figures from its expvar listener.
func watchHeap(ctx context.Context, log *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("\n%-10s %-10s %-10s %-10s\n", "Time", "Heap(MB)", "Alloc(MB)", "GCs")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var vars struct {
			MemStats struct {
				HeapInuse uint64 `json:"HeapInuse"`
				Alloc     uint64 `json:"Alloc"`
				NumGC     uint32 `json:"NumGC"`
			} `json:"memstats"`
		}
		if err := getJSON(ctx, "http://"+debugAddr+"/debug/vars", &vars); err != nil {
			log.Debug("expvar unavailable", zap.Error(err))
			continue
		}

		fmt.Printf("%-10s %-10.2f %-10.2f %-10d\n",
			time.Now().Format("15:04:05"),
			float64(vars.MemStats.HeapInuse)/1024/1024,
			float64(vars.MemStats.Alloc)/1024/1024,
			vars.MemStats.NumGC,
		)
	}
}

func getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// waitForRelay polls /health until it reports ok or ctx ends.
func waitForRelay(ctx context.Context, url string) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		var health struct {
			Status string `json:"status"`
		}
		if err := getJSON(ctx, url, &health); err == nil && health.Status == "OK" {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.New("timed out waiting for " + url)
		case <-ticker.C:
		}
	}
}

var benchConfig = fmt.Sprintf(`
server:
  port: "%d"
  env: development
  static_dir: ""
relay:
  mock_char_delay: 1ms
  mock_chat_delay: 10ms
  request_timeout: 30s
log:
  level: error
  format: json
providers:
  deepseek:
    family: openai
    url: "http://localhost:%d/chat/completions"
    api_key: "bench-key-12345"
    model: deepseek-chat
  anthropic:
    family: anthropic
    url: "http://localhost:%d/v1/messages"
    api_key: "bench-anthropic-key"
    model: claude-3-sonnet-20240229
`, appPort, mockPort, mockPort)
