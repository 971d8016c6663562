package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/grovetools/studio/pkg/paths"
)

// socketClient returns an HTTP client that dials the daemon's unix socket.
func socketClient() *http.Client {
	socket := paths.SocketPath()
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socket)
			},
		},
	}
}

// daemonGet fetches a daemon endpoint and returns the raw body.
func daemonGet(path string) ([]byte, error) {
	resp, err := socketClient().Get("http://unix" + path)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable (is it running? try 'studio daemon start'): %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, body)
	}
	return body, nil
}
