package lan

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/koron/go-ssdp"
	"golang.org/x/sync/errgroup"
)

// Announcement is one service advertisement seen on the local network.
type Announcement struct {
	Host    string // Hostname as announced, may be empty
	Address string // IP address
	Port    int
	Service string // mDNS service type or SSDP search target
	Info    string // TXT record or SSDP SERVER header
	Source  string // "mdns" or "ssdp"
}

// Browser collects announcements for at most window.
type Browser interface {
	Browse(ctx context.Context, window time.Duration) ([]Announcement, error)
}

// BrowserFunc adapts a function to Browser.
type BrowserFunc func(ctx context.Context, window time.Duration) ([]Announcement, error)

// Browse calls f.
func (f BrowserFunc) Browse(ctx context.Context, window time.Duration) ([]Announcement, error) {
	return f(ctx, window)
}

// DefaultServices are the mDNS service types browsed when none are configured.
var DefaultServices = []string{
	"_googlecast._tcp",
	"_airplay._tcp",
	"_hap._tcp",
	"_hue._tcp",
	"_sonos._tcp",
	"_esphomelib._tcp",
	"_http._tcp",
}

// MDNSBrowser queries each service type concurrently.
type MDNSBrowser struct {
	Services []string
}

// Browse runs one mDNS query per service, each bounded by window.
func (b MDNSBrowser) Browse(ctx context.Context, window time.Duration) ([]Announcement, error) {
	services := b.Services
	if len(services) == 0 {
		services = DefaultServices
	}

	results := make([][]Announcement, len(services))
	g, ctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			found, err := queryService(ctx, svc, window)
			results[i] = found
			return err
		})
	}
	err := g.Wait()

	var out []Announcement
	for _, r := range results {
		out = append(out, r...)
	}
	return out, err
}

func queryService(ctx context.Context, service string, window time.Duration) ([]Announcement, error) {
	entries := make(chan *mdns.ServiceEntry, 32)
	collected := make(chan []Announcement, 1)
	go func() {
		var out []Announcement
		for e := range entries {
			out = append(out, fromServiceEntry(service, e))
		}
		collected <- out
	}()

	// mdns.Query blocks for the full timeout; a cancelled ctx shortens it.
	timeout := window
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		close(entries)
		<-collected
		return nil, ctx.Err()
	}

	err := mdns.Query(&mdns.QueryParam{
		Service:     service,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	found := <-collected
	if err != nil {
		return found, fmt.Errorf("mdns query %s: %w", service, err)
	}
	return found, nil
}

func fromServiceEntry(service string, e *mdns.ServiceEntry) Announcement {
	a := Announcement{
		Host:    e.Host,
		Port:    e.Port,
		Service: service,
		Info:    strings.Join(append([]string{e.Name, e.Info}, e.InfoFields...), " "),
		Source:  "mdns",
	}
	switch {
	case e.AddrV4 != nil:
		a.Address = e.AddrV4.String()
	case e.AddrV6 != nil:
		a.Address = e.AddrV6.String()
	}
	return a
}

// SSDPBrowser issues an ssdp:all search.
type SSDPBrowser struct{}

// Browse multicasts an M-SEARCH and waits window for responses.
func (SSDPBrowser) Browse(ctx context.Context, window time.Duration) ([]Announcement, error) {
	waitSec := int(math.Max(1, math.Ceil(window.Seconds())))

	type result struct {
		services []ssdp.Service
		err      error
	}
	done := make(chan result, 1)
	go func() {
		s, err := ssdp.Search(ssdp.All, waitSec, "")
		done <- result{s, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, fmt.Errorf("ssdp search: %w", r.err)
	}

	out := make([]Announcement, 0, len(r.services))
	for _, s := range r.services {
		a := Announcement{Service: s.Type, Info: s.Server, Source: "ssdp"}
		if u, err := url.Parse(s.Location); err == nil {
			host, port, err := net.SplitHostPort(u.Host)
			if err != nil {
				host = u.Hostname()
			}
			a.Address = host
			a.Port, _ = strconv.Atoi(port)
		}
		out = append(out, a)
	}
	return out, nil
}
