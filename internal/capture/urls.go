package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadURLs reads urls from a file, or stdin when source is "-". One url per
// line; blank lines and lines starting with '#' are skipped, as is anything
// after the first whitespace on a line.
func ReadURLs(source string) ([]string, error) {
	var reader io.Reader
	if source == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read url list '%s': %w", source, err)
		}
		defer f.Close()
		reader = f
	}

	urls, err := parseURLList(reader)
	if err != nil {
		return nil, fmt.Errorf("reading urls: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no urls found in '%s' (blank lines and # comments ignored)", source)
	}
	return urls, nil
}

func parseURLList(r io.Reader) ([]string, error) {
	seen := map[string]bool{}
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		url := strings.Fields(line)[0]
		if seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, url)
	}
	return urls, scanner.Err()
}
