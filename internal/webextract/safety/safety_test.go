package safety

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeResolver struct {
	ips map[string][]net.IPAddr
	err error
}

func (f *fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ips[host], nil
}

func TestValidatePublicHTTPURL_RejectsLoopback(t *testing.T) {
	g := NewGuard(nil)
	_, err := g.ValidatePublicHTTPURL(context.Background(), "http://127.0.0.1/x")
	if !errors.Is(err, ErrDisallowedURL) {
		t.Fatalf("expected ErrDisallowedURL, got %v", err)
	}
}

func TestValidatePublicHTTPURL_RejectsNonHTTPScheme(t *testing.T) {
	g := NewGuard(nil)
	_, err := g.ValidatePublicHTTPURL(context.Background(), "ftp://example.com/x")
	if !errors.Is(err, ErrDisallowedURL) {
		t.Fatalf("expected ErrDisallowedURL, got %v", err)
	}
}

func TestValidatePublicHTTPURL_RejectsPrivateResolution(t *testing.T) {
	g := NewGuard(nil)
	g.Resolver = &fakeResolver{ips: map[string][]net.IPAddr{
		"internal.example.com": {{IP: net.ParseIP("10.0.0.5")}},
	}}
	_, err := g.ValidatePublicHTTPURL(context.Background(), "http://internal.example.com/x")
	if !errors.Is(err, ErrDisallowedURL) {
		t.Fatalf("expected ErrDisallowedURL, got %v", err)
	}
}

func TestValidatePublicHTTPURL_AllowsOverrideCIDR(t *testing.T) {
	g := NewGuard([]string{"198.18.0.0/15"})
	g.Resolver = &fakeResolver{ips: map[string][]net.IPAddr{
		"bench.example.com": {{IP: net.ParseIP("198.18.1.1")}},
	}}
	if _, err := g.ValidatePublicHTTPURL(context.Background(), "http://bench.example.com/x"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidatePublicHTTPURL_UnresolvableHost(t *testing.T) {
	g := NewGuard(nil)
	g.Resolver = &fakeResolver{err: errors.New("no such host")}
	_, err := g.ValidatePublicHTTPURL(context.Background(), "http://does-not-exist.invalid/x")
	if !errors.Is(err, ErrUnresolvableHost) {
		t.Fatalf("expected ErrUnresolvableHost, got %v", err)
	}
}

func TestValidatePublicHTTPURL_AllowsPublicHost(t *testing.T) {
	g := NewGuard(nil)
	g.Resolver = &fakeResolver{ips: map[string][]net.IPAddr{
		"example.com": {{IP: net.ParseIP("93.184.216.34")}},
	}}
	if _, err := g.ValidatePublicHTTPURL(context.Background(), "https://example.com/path"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
