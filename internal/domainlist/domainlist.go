// Package domainlist loads the newline-delimited domain input file.
package domainlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads one domain per line from path, skipping blank lines. A positive
// limit truncates the list to the first N entries.
func Load(path string, limit int) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is the operator-supplied input file
	if err != nil {
		return nil, fmt.Errorf("open domain list %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		domain := strings.TrimSpace(scanner.Text())
		if domain == "" {
			continue
		}
		domains = append(domains, domain)
		if limit > 0 && len(domains) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domain list %s: %w", path, err)
	}
	return domains, nil
}
