package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/david/gsa-finder/internal/source"
)

func main() {
	base := strings.TrimRight(strings.TrimSpace(os.Getenv("SERVER_URL")), "/")
	if base == "" {
		base = "http://localhost:8081"
	}

	url := base + "/api/v1/data/reload"
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)

	var status source.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err == nil && status.State != "" {
		fmt.Printf("State: %s, records: %d, skipped: %d\n", status.State, status.Count, status.Skipped)
		if status.Error != "" {
			fmt.Printf("Error: %s\n", status.Error)
		}
	}
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
