package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Caller headers the gateway would normally inject.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-Role"
	adminUserID  = "sim-admin"
)

// HTTPClient wraps http.Client with timeout and caller headers.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request with the given caller identity.
func (c *HTTPClient) Get(url, userID, role string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setCaller(req, userID, role)
	return c.client.Do(req)
}

// Post performs a POST request with JSON body and the given caller identity.
func (c *HTTPClient) Post(url, userID, role string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	setCaller(req, userID, role)
	return c.client.Do(req)
}

func setCaller(req *http.Request, userID, role string) {
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	if role != "" {
		req.Header.Set(headerRole, role)
	}
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitScores submits all judge scores concurrently using a worker pool.
func submitScores(ctx context.Context, config *Config, subs []scorePayload, stats *Stats) error {
	log.Printf("📤 Submitting %d scores with %d workers...", len(subs), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/scores"

	var (
		successful int64
		duplicate  int64
		failed     int64
		submitted  int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	subChan := make(chan scorePayload, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for sub := range subChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleScore(client, url, sub)

					atomic.AddInt64(&submitted, 1)
					switch result {
					case "success":
						atomic.AddInt64(&successful, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						succ := atomic.LoadInt64(&successful)
						dup := atomic.LoadInt64(&duplicate)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d submitted (success: %d, duplicate: %d, failed: %d)",
								total, len(subs), succ, dup, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (success: %d, duplicate: %d, failed: %d)",
								total, len(subs), succ, dup, fail)
						}
					}
				}
			}
		}()
	}

	go func() {
		defer close(subChan)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	wg.Wait()

	if !config.Verbose {
		fmt.Println()
	}

	stats.SubmissionsSent = int(atomic.LoadInt64(&submitted))
	stats.SubmissionsOK = int(atomic.LoadInt64(&successful))
	stats.SubmissionsDup = int(atomic.LoadInt64(&duplicate))
	stats.SubmissionsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Score submission completed:
   Successful: %d
   Duplicate: %d
   Failed: %d
`, stats.SubmissionsOK, stats.SubmissionsDup, stats.SubmissionsFailed)

	return nil
}

// submitSingleScore submits one judge payload and classifies the outcome.
func submitSingleScore(client *HTTPClient, url string, sub scorePayload) string {
	resp, err := client.Post(url, sub.JudgeID, "judge", sub)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	if resp.StatusCode != http.StatusOK {
		return "failed"
	}

	var ack ackResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return "failed"
	}
	if ack.Duplicate {
		return "duplicate"
	}
	if ack.Accepted {
		return "success"
	}
	return "failed"
}
