// Package urlsource loads the list of pages to crawl from the URL directory
// service or a local file.
package urlsource

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alvmarrod/ld-weaver/internal/pipeline"
)

// Parse turns newline-delimited text into a URL list. Surrounding
// whitespace and every double quote are stripped; blank lines are dropped.
func Parse(text string) []string {
	urls := []string{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ReplaceAll(scanner.Text(), `"`, ""))
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// FromEndpoint fetches the URL list from the directory service
func FromEndpoint(ctx context.Context, fetcher pipeline.Fetcher, endpoint string) ([]string, error) {
	page, err := fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load URL list: %w", err)
	}
	return Parse(string(page.Body)), nil
}

// FromFile reads the URL list from a local file
func FromFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return Parse(string(data)), nil
}
