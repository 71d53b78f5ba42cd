package intercept

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// Firewall holds the blocked IP set. Reads never observe a partially
// applied update.
type Firewall struct {
	store  rules.BlockListRepository
	logger *zap.Logger

	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewFirewall loads the block list, adopting and persisting the defaults
// when none is stored. As with NewInterceptor, an unreadable list yields the
// defaults plus the load error.
func NewFirewall(ctx context.Context, store rules.BlockListRepository, logger *zap.Logger) (*Firewall, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Firewall{store: store, logger: logger, blocked: make(map[string]struct{})}

	list, err := store.LoadBlockList(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sharedErrors.ErrRulesMissing):
		list = rules.DefaultBlockList()
		if saveErr := store.SaveBlockList(ctx, list); saveErr != nil {
			logger.Warn("could not persist default block list", zap.Error(saveErr))
		}
	default:
		logger.Error("failed to load block list", zap.Error(err))
		f.set(rules.DefaultBlockList())
		return f, err
	}

	f.set(list)
	return f, nil
}

func (f *Firewall) set(list rules.BlockList) {
	blocked := make(map[string]struct{}, len(list.BlockedIPs))
	for _, ip := range list.BlockedIPs {
		if canon := canonicalIP(ip); canon != "" {
			blocked[canon] = struct{}{}
		}
	}
	f.mu.Lock()
	f.blocked = blocked
	f.mu.Unlock()
}

// IsBlocked reports whether ip is in the set.
func (f *Firewall) IsBlocked(ip string) bool {
	canon := canonicalIP(ip)
	if canon == "" {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.blocked[canon]
	return ok
}

// Block adds ip and persists the list. Blocking an already blocked IP is a no-op.
func (f *Firewall) Block(ctx context.Context, ip string) error {
	canon := canonicalIP(ip)
	if canon == "" {
		return fmt.Errorf("block %q: %w", ip, sharedErrors.ErrInvalidInput)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocked[canon]; ok {
		return nil
	}

	next := make(map[string]struct{}, len(f.blocked)+1)
	for k := range f.blocked {
		next[k] = struct{}{}
	}
	next[canon] = struct{}{}

	if err := f.store.SaveBlockList(ctx, rules.BlockList{BlockedIPs: sortedSet(next)}); err != nil {
		return err
	}
	f.blocked = next
	f.logger.Info("ip blocked", zap.String("ip", canon))
	return nil
}

// Unblock removes ip and persists the list. It reports whether ip was blocked.
func (f *Firewall) Unblock(ctx context.Context, ip string) (bool, error) {
	canon := canonicalIP(ip)
	if canon == "" {
		return false, fmt.Errorf("unblock %q: %w", ip, sharedErrors.ErrInvalidInput)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocked[canon]; !ok {
		return false, nil
	}

	next := make(map[string]struct{}, len(f.blocked))
	for k := range f.blocked {
		if k != canon {
			next[k] = struct{}{}
		}
	}
	if err := f.store.SaveBlockList(ctx, rules.BlockList{BlockedIPs: sortedSet(next)}); err != nil {
		return false, err
	}
	f.blocked = next
	f.logger.Info("ip unblocked", zap.String("ip", canon))
	return true, nil
}

// List returns the blocked IPs, sorted.
func (f *Firewall) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedSet(f.blocked)
}

func canonicalIP(raw string) string {
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
