// Package rules defines the interceptor rule set, the firewall block list and
// the repositories that load and persist them.
package rules

import "context"

// RuleRepository defines the interface for rule set persistence
type RuleRepository interface {
	// LoadRules returns the stored rule set. A missing store yields
	// errors.ErrRulesMissing; an unreadable or malformed one a *errors.RuleLoadError.
	LoadRules(ctx context.Context) (RuleSet, error)

	// SaveRules replaces the stored rule set
	SaveRules(ctx context.Context, rules RuleSet) error
}

// BlockListRepository defines the interface for block list persistence
type BlockListRepository interface {
	// LoadBlockList follows the same error contract as LoadRules
	LoadBlockList(ctx context.Context) (BlockList, error)

	// SaveBlockList replaces the stored block list
	SaveBlockList(ctx context.Context, list BlockList) error
}
