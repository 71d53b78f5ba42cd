package intercept

import (
	"context"
	"sync"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// memoryStore is an in-memory rules.RuleRepository and rules.BlockListRepository.
type memoryStore struct {
	mu        sync.Mutex
	rules     *rules.RuleSet
	blockList *rules.BlockList
	loadErr   error
	saveErr   error
	saves     int
}

func (s *memoryStore) LoadRules(ctx context.Context) (rules.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return rules.RuleSet{}, s.loadErr
	}
	if s.rules == nil {
		return rules.RuleSet{}, sharedErrors.ErrRulesMissing
	}
	return *s.rules, nil
}

func (s *memoryStore) SaveRules(ctx context.Context, set rules.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.rules = &set
	return nil
}

func (s *memoryStore) LoadBlockList(ctx context.Context) (rules.BlockList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return rules.BlockList{}, s.loadErr
	}
	if s.blockList == nil {
		return rules.BlockList{}, sharedErrors.ErrRulesMissing
	}
	return *s.blockList, nil
}

func (s *memoryStore) SaveBlockList(ctx context.Context, list rules.BlockList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.blockList = &list
	return nil
}
