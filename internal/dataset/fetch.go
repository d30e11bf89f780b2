package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMappingsURL is the upstream D3FEND full-mappings endpoint.
const DefaultMappingsURL = "https://d3fend.mitre.org/api/ontology/inference/d3fend-full-mappings.json"

// Fetch downloads the mappings file from url and writes it atomically to
// dest. The response is capped at maxBytes to bound memory and disk use.
// It returns the number of bytes written.
func Fetch(ctx context.Context, url, dest string, timeout time.Duration, maxBytes int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return 0, fmt.Errorf("response exceeds %d byte limit", maxBytes)
	}

	if err := atomicWrite(dest, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
