package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAPI = "http://localhost:8080"

var httpClient = &http.Client{Timeout: 15 * time.Second}

func apiBase() string {
	if v := os.Getenv("CAMFLEET_API"); v != "" {
		return v
	}
	return defaultAPI
}

// getJSON fetches path and decodes the response into out.
func getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(apiBase() + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON sends an empty POST (the operator endpoints take no body) and
// decodes the response into out when out is non-nil.
func postJSON(path string, out interface{}) error {
	resp, err := httpClient.Post(apiBase()+path, "application/json", bytes.NewReader(nil))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(body))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
