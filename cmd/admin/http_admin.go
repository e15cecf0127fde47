package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// healthCmd prints a running server's /healthz and, with -metrics, /metrics.
func healthCmd(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	metrics := fs.Bool("metrics", false, "also print /metrics")
	_ = fs.Parse(args)

	paths := []string{"/healthz"}
	if *metrics {
		paths = append(paths, "/metrics")
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	for _, p := range paths {
		body, err := fetch(cl, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "request:", err)
			os.Exit(1)
		}
		fmt.Println(strings.TrimSpace(body))
	}
}

func fetch(cl *http.Client, u string) (string, error) {
	resp, err := cl.Get(u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%s: status=%d body=%s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return string(b), nil
}
