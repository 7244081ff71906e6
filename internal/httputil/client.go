package httputil

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NewClient returns an http client for talking to one remote host.
// Timeouts are in seconds; invalid or small values are raised to 5.
func NewClient(connTimeout, readTimeout string) *http.Client {
	conn := IntegerWithMinimum(connTimeout, 5)
	read := IntegerWithMinimum(readTimeout, 5)

	return &http.Client{
		Timeout: time.Duration(read) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   time.Duration(conn) * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:        100, // we are hitting one host, so
			MaxIdleConnsPerHost: 100, // these two values can be the same
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// IntegerWithMinimum parses str, falling back to min for invalid or
// smaller values.
func IntegerWithMinimum(str string, min int) int {
	val, err := strconv.Atoi(str)

	if err != nil || val < min {
		val = min
	}

	return val
}

// StatusForError maps a transport error to the HTTP status reported to
// our own clients.
func StatusForError(err error) int {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusRequestTimeout
	}

	if strings.Contains(err.Error(), "connection refused") {
		return http.StatusServiceUnavailable
	}

	return http.StatusBadGateway
}
