package main

import (
	"net/http"
	"time"
)

// newHTTPClient returns a client whose timeout bounds a whole download.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Minute
	return &http.Client{Timeout: timeout, Transport: transport}
}
