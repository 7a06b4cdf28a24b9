package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// checkHealth probes http://localhost:<port><endpoint> and reports
// whether it answered with a 2xx status. Any transport or timeout
// problem reads as an unhealthy endpoint; this function never panics
// or returns an error.
func checkHealth(ctx context.Context, port int, endpoint string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%d%s", port, endpoint)
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
