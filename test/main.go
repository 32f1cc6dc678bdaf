package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type submission struct {
	SiteID   string
	FullName string
	Message  string
}

func main() {
	count := flag.Int("count", 100, "Total number of submissions to send")
	concurrency := flag.Int("concurrency", 10, "Number of concurrent workers")
	siteID := flag.String("site", "acme", "Site ID to submit as")
	origin := flag.String("origin", "", "Origin header to send (empty to omit)")
	apiURL := flag.String("url", "http://localhost:8080/submit-form", "URL of the form-relay endpoint")
	flag.Parse()

	runLoadTest(*count, *concurrency, *siteID, *origin, *apiURL)
}

func runLoadTest(count, concurrency int, siteID, origin, apiURL string) {
	log.Printf("Starting load test: %d submissions with %d concurrent workers to %s", count, concurrency, apiURL)

	jobs := make(chan submission, count)
	results := make(chan bool, count)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker(i+1, apiURL, origin, jobs, results, &wg)
	}

	startTime := time.Now()
	for i := 0; i < count; i++ {
		jobs <- submission{
			SiteID:   siteID,
			FullName: fmt.Sprintf("Load Tester %d", i+1),
			Message:  fmt.Sprintf("Synthetic submission %d/%d generated at %v", i+1, count, time.Now()),
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	duration := time.Since(startTime)
	successCount := 0
	for r := range results {
		if r {
			successCount++
		}
	}

	log.Println("----------- Load Test Complete -----------")
	log.Printf("Total Requests: %d", count)
	log.Printf("Successful:     %d", successCount)
	log.Printf("Failed:         %d", count-successCount)
	log.Printf("Duration:       %.2f seconds", duration.Seconds())
	log.Printf("RPS (Requests Per Second): %.2f", float64(count)/duration.Seconds())
	log.Println("-------------------------------------------")
}

func worker(id int, apiURL, origin string, jobs <-chan submission, results chan<- bool, wg *sync.WaitGroup) {
	defer wg.Done()
	client := &http.Client{Timeout: 30 * time.Second}
	for job := range jobs {
		err := submitForm(client, apiURL, origin, job)
		if err != nil {
			log.Printf("ERROR (Worker %d): %v", id, err)
			results <- false
		} else {
			results <- true
		}
	}
}

func submitForm(client *http.Client, apiURL, origin string, job submission) error {
	form := url.Values{}
	form.Set("site_id", job.SiteID)
	form.Set("full_name", job.FullName)
	form.Set("message", job.Message)

	req, err := http.NewRequest("POST", apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned non-200 status: %s", resp.Status)
	}
	return nil
}
