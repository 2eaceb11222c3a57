package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"example.com/postfeed/bench/benchutil"
)

type benchUser struct {
	Name  string
	Token string
}

// Signs up users, makes them follow each other, publishes posts and measures
// how long until each post shows up on its followers' /follow/ page.
func main() {
	var serverAddr string
	var U, F, P, concurrency int
	var pollTimeout int
	var certFile, keyFile string
	var insecure bool

	flag.StringVar(&serverAddr, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "follows", 10, "average follows per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for post delivery")
	flag.StringVar(&certFile, "cert", "", "client certificate (optional)")
	flag.StringVar(&keyFile, "key", "", "client key (optional)")
	flag.BoolVar(&insecure, "insecure", true, "skip server certificate verification")
	flag.Parse()

	client, err := benchutil.NewClient(certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}

	// --- 1) Sign up users ---
	fmt.Printf("Signing up %d users...\n", U)
	users := make([]benchUser, 0, U)
	for i := 0; i < U; i++ {
		name := fmt.Sprintf("user-%d-%d", i, time.Now().UnixNano())
		token, err := benchutil.Signup(client, serverAddr, name, "e2e-password")
		if err != nil {
			fmt.Printf("signup error: %v\n", err)
			os.Exit(1)
		}
		users = append(users, benchUser{Name: name, Token: token})
	}
	fmt.Println("Users signed up successfully.")

	// --- 2) Create follow relationships between users ---
	fmt.Printf("Creating follows (~%d per user)...\n", F)
	followers := make(map[string]map[string]bool) // author -> follower set
	for _, u := range users {
		for j := 0; j < F; j++ {
			author := users[rand.Intn(len(users))]
			if author.Name == u.Name {
				continue
			}
			req, _ := benchutil.NewRequest(http.MethodGet, serverAddr+"/"+url.PathEscape(author.Name)+"/follow/", u.Token, nil)
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			resp.Body.Close()
			if followers[author.Name] == nil {
				followers[author.Name] = make(map[string]bool)
			}
			followers[author.Name][u.Name] = true
		}
	}
	fmt.Println("Follow relationships established.")

	tokens := make(map[string]string, len(users))
	for _, u := range users {
		tokens[u.Name] = u.Token
	}

	// --- 3) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	type postRecord struct {
		Marker  string
		Author  string
		Created time.Time
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	postsCh := make(chan postRecord, P)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			author := users[rand.Intn(len(users))]
			marker := fmt.Sprintf("e2e-marker-%d-%d", i, rand.Int63())
			req, _ := benchutil.NewRequest(http.MethodPost, serverAddr+"/new/", author.Token, url.Values{"text": {marker}})

			created := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusFound {
				fmt.Printf("post rejected: status %d\n", resp.StatusCode)
				return
			}
			postsCh <- postRecord{Marker: marker, Author: author.Name, Created: created}
		}(i)
	}

	wg.Wait()
	close(postsCh)

	// --- 4) Verify the posts reach followers' /follow/ pages ---
	fmt.Println("Checking follow page delivery...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var checksWg sync.WaitGroup

	for pr := range postsCh {
		for fid := range followers[pr.Author] {
			checksWg.Add(1)
			go func(pr postRecord, token string) {
				defer checksWg.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)

				// Poll until the post appears or timeout
				for time.Now().Before(deadline) {
					req, _ := benchutil.NewRequest(http.MethodGet, serverAddr+"/follow/", token, nil)
					resp, err := client.Do(req)
					if err != nil {
						time.Sleep(200 * time.Millisecond)
						continue
					}
					body, err := io.ReadAll(resp.Body)
					resp.Body.Close()

					if err == nil && strings.Contains(string(body), pr.Marker) {
						latMu.Lock()
						latencies = append(latencies, time.Since(pr.Created).Seconds()*1000)
						latMu.Unlock()
						return
					}
					time.Sleep(200 * time.Millisecond)
				}

				latMu.Lock()
				failCount++
				latMu.Unlock()
			}(pr, tokens[fid])
		}
	}

	checksWg.Wait()

	// --- 5) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful deliveries recorded.")
		return
	}

	trimPercent := 1.0
	meanVal := benchutil.TrimmedMean(latencies, trimPercent)
	p50 := benchutil.TrimmedPercentile(latencies, 50, trimPercent)
	p90 := benchutil.TrimmedPercentile(latencies, 90, trimPercent)
	p99 := benchutil.TrimmedPercentile(latencies, 99, trimPercent)
	fmt.Printf("Delivery stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
		len(latencies), meanVal, p50, p90, p99, failCount)

	if err := benchutil.WriteCSV("e2e_latencies.csv", latencies); err != nil {
		fmt.Printf("Failed to write CSV file: %v\n", err)
		return
	}
	fmt.Println("Saved e2e_latencies.csv")
}
