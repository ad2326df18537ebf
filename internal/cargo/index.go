package cargo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrIndexTimeout is returned when the registry index never showed the
// published version within the wait budget.
var ErrIndexTimeout = errors.New("timed out waiting for the registry index")

// indexEntry is one line of a sparse index file.
type indexEntry struct {
	Vers   string `json:"vers"`
	Yanked bool   `json:"yanked"`
}

// indexPath maps a crate name to its sparse index file, following the
// registry layout: one- and two-letter names get a flat bucket, three-letter
// names bucket on the first letter, everything else on the first two pairs.
func indexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[0:2] + "/" + name[2:4] + "/" + name
	}
}

// WaitForPublish polls the sparse index until the given version appears.
// Failed probes are logged and retried: the index is frequently flaky right
// after a publish, and only the deadline decides. It returns
// [ErrIndexTimeout] when the budget runs out, so the caller can map that to
// its own failure handling; context cancellation is the only other exit.
func (c *Cargo) WaitForPublish(ctx context.Context, name, version string, timeout time.Duration) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(c.IndexURL, "/") + "/" + indexPath(name)

	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		found, err := indexHasVersion(ctx, client, url, version)
		if err != nil {
			c.logger().Debug("index probe failed, retrying", "crate", name, "err", err)
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s %s not in index after %s", ErrIndexTimeout, name, version, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func indexHasVersion(ctx context.Context, client *http.Client, url, version string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("index probe failed: %w", err)
	}
	defer resp.Body.Close()

	// The file does not exist until the first version of a crate lands.
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("index probe returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry indexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Vers == version && !entry.Yanked {
			return true, nil
		}
	}
	return false, scanner.Err()
}
