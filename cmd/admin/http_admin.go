package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(doRequest(http.MethodGet, endpoint(*baseURL, "/admin/v1/state", nil), 5*time.Second))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(doRequest(http.MethodPost, endpoint(*baseURL, "/admin/v1/snapshot", nil), 10*time.Second))
}

// sampleCmd asks a running server for the terrain sample at one column.
func sampleCmd(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	x := fs.Int("x", 0, "world x")
	z := fs.Int("z", 0, "world z")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("x", strconv.Itoa(*x))
	q.Set("z", strconv.Itoa(*z))
	os.Exit(doRequest(http.MethodGet, endpoint(*baseURL, "/v1/sample", q), 5*time.Second))
}

func endpoint(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// doRequest prints the response body and returns the process exit code.
func doRequest(method, u string, timeout time.Duration) int {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 2
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
