package recon

import (
	"context"
	"errors"
	"testing"
)

func TestSubdomainFinder(t *testing.T) {
	zone := map[string][]string{
		"www.example.com": {"192.0.2.10"},
		"api.example.com": {"192.0.2.20", "192.0.2.21"},
		"vpn.example.com": {"192.0.2.30"},
	}
	resolver := HostResolverFunc(func(ctx context.Context, host string) ([]string, error) {
		if addrs, ok := zone[host]; ok {
			return addrs, nil
		}
		return nil, errors.New("no such host")
	})

	found, err := NewSubdomainFinder(resolver, SubdomainOptions{Workers: 3}).Find(context.Background(), "Example.com.")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}

	wantNames := []string{"www.example.com", "api.example.com", "vpn.example.com"}
	if len(found) != len(wantNames) {
		t.Fatalf("expected %d subdomains, got %+v", len(wantNames), found)
	}
	for i, name := range wantNames {
		if found[i].Name != name {
			t.Errorf("found[%d] = %s, want %s (wordlist order)", i, found[i].Name, name)
		}
		if found[i].IP != zone[name][0] {
			t.Errorf("found[%d].IP = %s, want %s", i, found[i].IP, zone[name][0])
		}
	}
}

func TestSubdomainFinderRejectsInvalidDomain(t *testing.T) {
	_, err := NewSubdomainFinder(nil, SubdomainOptions{}).Find(context.Background(), "http://example.com")
	if err == nil {
		t.Fatal("expected error for URL input")
	}
}
