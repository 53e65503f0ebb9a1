package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
	adminKey = "bench-admin-key"
)

// remotePricing is what the mock deployment answers to public-get-pricing.
var remotePricing = []byte(`{"pricing":{"subscription":{"monthlyPrice":3000,"monthlyTokens":1000000,"currency":"DZD"},"tokenPack":{"pricePerMillion":900,"currency":"DZD"},"discounts":[{"threshold":6,"percentage":10}],"vat":{"enabled":true,"rate":19}}}`)

var remoteCalls atomic.Int64

// scenarios maps a name to the request it sends.
var scenarios = map[string]vegeta.Target{
	"health": {Method: http.MethodGet, URL: fmt.Sprintf("http://localhost:%d/health", appPort)},
	"pricing": {
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://localhost:%d/functions/v1/public-get-pricing", appPort),
		Body:   []byte(`{}`),
	},
	"llm": {
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://localhost:%d/functions/v1/public-get-llm-settings", appPort),
		Body:   []byte(`{}`),
	},
	"admin": {
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://localhost:%d/functions/v1/admin-get-settings", appPort),
		Body:   []byte(`{}`),
		Header: http.Header{"Authorization": []string{"Bearer " + adminKey}},
	},
	"alerts": {
		Method: http.MethodGet,
		URL:    fmt.Sprintf("http://localhost:%d/admin/v1/alert-rules?page_size=20", appPort),
		Header: http.Header{"Authorization": []string{"Bearer " + adminKey}},
	},
}

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 200, "Requests per second")
	scenario := flag.String("scenario", "pricing", "Comma separated scenarios: health, pricing, llm, admin, alerts")
	flag.Parse()

	targets, err := pickTargets(*scenario)
	if err != nil {
		log.Fatal(err)
	}

	go startMockBackend()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CONFIG_FILE=%s", configFile),
		fmt.Sprintf("SERVER_PORT=%d", appPort),
		"LOG_LEVEL=error",
	)

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	done := make(chan struct{})
	go func() {
		time.Sleep(2 * time.Second)
		monitorResources(cmd.Process.Pid, done)
	}()

	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", *scenario, *duration, *rate)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	targeter := vegeta.NewStaticTargeter(targets...)
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Printf("Remote calls:    %d\n", remoteCalls.Load())
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		seen := make(map[string]bool)
		for _, msg := range metrics.Errors {
			if len(seen) == 5 {
				break
			}
			if !seen[msg] {
				fmt.Println(msg)
				seen[msg] = true
			}
		}
	}

	os.Remove("bench.db")
}

func pickTargets(names string) ([]vegeta.Target, error) {
	var targets []vegeta.Target
	for _, name := range strings.Split(names, ",") {
		t, ok := scenarios[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		if t.Header == nil {
			t.Header = http.Header{}
		}
		t.Header.Set("Content-Type", "application/json")
		targets = append(targets, t)
	}
	return targets, nil
}

// startMockBackend stands in for a remote deployment serving pricing.
func startMockBackend() {
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/public-get-pricing", func(w http.ResponseWriter, r *http.Request) {
		remoteCalls.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(remotePricing)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func monitorResources(pid int, done chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	fmt.Println("\n--- Resource Usage (expvar + ps) ---")
	fmt.Printf("% -10s % -10s % -10s % -10s\n", "Time", "Heap(MB)", "Alloc(MB)", "CPU(%)")

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			resp, err := http.Get("http://127.0.0.1:6060/debug/vars")
			if err != nil {
				fmt.Printf("DEBUG: expvar unreachable: %v\n", err)
				continue
			}

			var vars struct {
				MemStats struct {
					HeapInuse uint64 `json:"HeapInuse"`
					Alloc     uint64 `json:"Alloc"`
				} `json:"memstats"`
			}
			err = json.NewDecoder(resp.Body).Decode(&vars)
			resp.Body.Close()
			if err != nil {
				continue
			}

			cpu := 0.0
			out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "%cpu").Output()
			if err == nil {
				lines := strings.Split(strings.TrimSpace(string(out)), "\n")
				if len(lines) >= 2 {
					cpu, _ = strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
				}
			}

			fmt.Printf("% -10s % -10.2f % -10.2f % -10.2f\n",
				time.Now().Format("15:04:05"),
				float64(vars.MemStats.HeapInuse)/1024/1024,
				float64(vars.MemStats.Alloc)/1024/1024,
				cpu,
			)
		}
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}

var benchConfig = fmt.Sprintf(`
server:
  port: "%d"
  env: development
  admin_keys: ["%s"]
rate_limit:
  requests_per_second: 100000
  burst: 100000
log:
  level: "error"
database:
  dsn: "file:bench.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000"
backend:
  base_url: "http://localhost:%d"
cache:
  ttl: 2s
`, appPort, adminKey, mockPort)
