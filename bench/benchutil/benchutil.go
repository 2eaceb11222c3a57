// Package benchutil holds the HTTP client setup, sign-up helper and latency
// statistics shared by the load tools under bench/.
package benchutil

import (
	"crypto/tls"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// CookieName must match the session cookie the server sets.
const CookieName = "token"

// NewClient builds an HTTP client that does not follow redirects, so callers
// can read the status and cookies of form posts. certFile/keyFile are an
// optional client certificate; insecure skips server certificate checks.
func NewClient(certFile, keyFile string, insecure bool) (*http.Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: insecure}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
		Timeout:   10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// Signup registers username and returns its session token.
func Signup(client *http.Client, server, username, password string) (string, error) {
	form := url.Values{
		"username":  {username},
		"password1": {password},
		"password2": {password},
	}
	resp, err := client.PostForm(server+"/auth/signup/", form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("signup %s: unexpected status %d", username, resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("signup %s: no session cookie", username)
}

// NewRequest builds a request carrying the session token. body is sent as a
// URL-encoded form when non-nil.
func NewRequest(method, target, token string, body url.Values) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, target, strings.NewReader(body.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequest(method, target, nil)
	}
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return req, nil
}

// TrimmedMean returns the mean after dropping trimPercent of the values from
// each end. data is sorted in place.
func TrimmedMean(data []float64, trimPercent float64) float64 {
	trimmed := trim(data, trimPercent)
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// Percentile returns the p-th percentile using linear interpolation. data
// must be sorted.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}

// TrimmedPercentile is Percentile over the trimmed data.
func TrimmedPercentile(data []float64, p, trimPercent float64) float64 {
	return Percentile(trim(data, trimPercent), p)
}

func trim(data []float64, trimPercent float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	sort.Float64s(data)
	n := int(float64(len(data)) * trimPercent / 100.0)
	if n*2 >= len(data) {
		n = len(data) / 2
		if n*2 == len(data) {
			n--
		}
	}
	return data[n : len(data)-n]
}

// WriteCSV stores latencies in milliseconds, one per row.
func WriteCSV(path string, latencies []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"latency_ms"}); err != nil {
		return err
	}
	for _, d := range latencies {
		if err := w.Write([]string{fmt.Sprintf("%.3f", d)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
