package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"example.com/postfeed/bench/benchutil"
)

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var writePercent int
	var csvFile string
	var trimPercent float64
	var certFile, keyFile string
	var insecure bool

	flag.StringVar(&server, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.IntVar(&writePercent, "writes", 10, "percent of requests that create a post, the rest read the home page")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "", "client certificate (optional)")
	flag.StringVar(&keyFile, "key", "", "client key (optional)")
	flag.BoolVar(&insecure, "insecure", true, "skip server certificate verification")
	flag.Parse()

	client, err := benchutil.NewClient(certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}

	// --- Sign up one user per goroutine ---
	fmt.Printf("Signing up %d users...\n", concurrency)
	tokens := make([]string, concurrency)
	for i := range tokens {
		name := fmt.Sprintf("load-user-%d-%d", i, time.Now().UnixNano())
		tokens[i], err = benchutil.Signup(client, server, name, "load-password")
		if err != nil {
			panic(fmt.Sprintf("failed to sign up: %v", err))
		}
	}
	fmt.Println("Users signed up.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(idx)))
			var localLatencies []float64

			for time.Now().Before(stopTime) {
				var req *http.Request
				if rng.Intn(100) < writePercent {
					body := url.Values{"text": {fmt.Sprintf("load test post %d", time.Now().UnixNano())}}
					req, _ = benchutil.NewRequest(http.MethodPost, server+"/new/", tokens[idx], body)
				} else {
					req, _ = benchutil.NewRequest(http.MethodGet, server+"/", tokens[idx], nil)
				}

				start := time.Now()
				resp, err := client.Do(req)
				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				// Successful form posts answer with a redirect
				switch {
				case resp.StatusCode < 400:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				default:
					atomic.AddInt64(&errors5xx, 1)
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}

	trimmedMeanVal := benchutil.TrimmedMean(allLatencies, trimPercent)
	p50 := benchutil.Percentile(allLatencies, 50)
	p90 := benchutil.Percentile(allLatencies, 90)
	p99 := benchutil.Percentile(allLatencies, 99)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	if err := benchutil.WriteCSV(csvFile, allLatencies); err != nil {
		fmt.Printf("Failed to write CSV file: %v\n", err)
		return
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}
