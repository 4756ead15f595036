package metadata

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadBlacklist reads blacklist files and returns the union of the
// package names they list. Lines are one package name each; blank lines
// and '#' comments are ignored.
func LoadBlacklist(files []string) (map[string]bool, error) {
	blacklist := make(map[string]bool)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading blacklist %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			blacklist[line] = true
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading blacklist %s: %w", path, err)
		}
	}
	return blacklist, nil
}
