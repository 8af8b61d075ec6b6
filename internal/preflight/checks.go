package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBrowser verifies the DevTools endpoint when one is configured. Without
// a control URL the browser is launched on demand, so only an explicitly
// configured binary is checked.
func CheckBrowser(ctx context.Context, controlURL, bin string) Result {
	const name = "Browser"

	controlURL = strings.TrimSpace(controlURL)
	if controlURL == "" {
		bin = strings.TrimSpace(bin)
		if bin == "" {
			return Result{Name: name, Passed: true, Detail: "launched on demand"}
		}
		if _, err := exec.LookPath(bin); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s not found", bin)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("launched on demand (%s)", bin)}
	}

	endpoint, err := devToolsVersionURL(controlURL)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid control url (%v)", err)}
	}
	status, err := get(ctx, endpoint)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	if status != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("devtools check failed (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "DevTools reachable"}
}

// CheckNtfy verifies the ntfy server behind the configured topic is healthy.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: "invalid topic url"}
	}
	health := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	status, err := get(ctx, health.String())
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	if status != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// devToolsVersionURL maps a ws:// or http:// DevTools address onto its
// /json/version endpoint.
func devToolsVersionURL(controlURL string) (string, error) {
	parsed, err := url.Parse(controlURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", errors.New("missing host")
	}
	scheme := "http"
	if parsed.Scheme == "wss" || parsed.Scheme == "https" {
		scheme = "https"
	}
	version := url.URL{Scheme: scheme, Host: parsed.Host, Path: "/json/version"}
	return version.String(), nil
}

func get(ctx context.Context, target string) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return err.Error()
}
