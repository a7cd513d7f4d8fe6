package wemo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/koron/go-ssdp"
)

// Searcher runs an SSDP M-SEARCH for searchType and returns the LOCATION
// URLs of every response received within window.
type Searcher func(ctx context.Context, searchType string, window time.Duration) ([]string, error)

// SSDPSearch is the default Searcher, multicasting on 239.255.255.250:1900.
func SSDPSearch(ctx context.Context, searchType string, window time.Duration) ([]string, error) {
	waitSec := int(math.Max(1, math.Ceil(window.Seconds())))

	type result struct {
		services []ssdp.Service
		err      error
	}
	done := make(chan result, 1)
	go func() {
		services, err := ssdp.Search(searchType, waitSec, "")
		done <- result{services, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("ssdp search %s: %w", searchType, r.err)
		}
		locations := make([]string, 0, len(r.services))
		for _, s := range r.services {
			locations = append(locations, s.Location)
		}
		return locations, nil
	}
}
