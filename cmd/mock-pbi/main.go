package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/analyticsops/pbi-push-pipeline/internal/mockpbi"
)

func main() {
	addr := defaultString("MOCK_PBI_ADDR", ":8080")
	token := defaultString("MOCK_PBI_TOKEN", "mock-token")

	fs := flag.NewFlagSet("mock-pbi", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Bearer token the mock issues and requires")
	_ = fs.Parse(os.Args[1:])

	srv := mockpbi.New(token)

	_, _ = fmt.Fprintf(os.Stdout, "mock-pbi listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
