package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"github.com/khanhnv2901/sparrow-cli/internal/shared/security"
)

// blockListDTO is the JSON layout of blocked_ips.json
type blockListDTO struct {
	BlockedIPs []string `json:"blocked_ips"`
}

// BlockListRepository implements rules.BlockListRepository on a JSON file
type BlockListRepository struct {
	filePath string
	mu       sync.RWMutex
}

// NewBlockListRepository creates a repository for blocked_ips.json inside dir.
func NewBlockListRepository(dir string) (*BlockListRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("config directory cannot be empty")
	}
	path, err := security.ConfigFile(dir, consts.DefaultBlockListFile)
	if err != nil {
		return nil, fmt.Errorf("invalid block list path: %w", err)
	}
	return &BlockListRepository{filePath: path}, nil
}

// Path returns the block list location.
func (r *BlockListRepository) Path() string { return r.filePath }

// LoadBlockList reads and decodes the block list
func (r *BlockListRepository) LoadBlockList(ctx context.Context) (rules.BlockList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rules.BlockList{}, sharedErrors.ErrRulesMissing
		}
		return rules.BlockList{}, &sharedErrors.RuleLoadError{Path: r.filePath, Err: err}
	}

	var dto blockListDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return rules.BlockList{}, &sharedErrors.RuleLoadError{
			Path: r.filePath,
			Err:  fmt.Errorf("%w: %w", sharedErrors.ErrDeserializationFailed, err),
		}
	}
	return rules.BlockList{BlockedIPs: dto.BlockedIPs}, nil
}

// SaveBlockList writes the block list with four-space indentation
func (r *BlockListRepository) SaveBlockList(ctx context.Context, list rules.BlockList) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(blockListDTO{BlockedIPs: nonNil(list.BlockedIPs)}, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %w", sharedErrors.ErrSerializationFailed, err)
	}
	if err := writeFileAtomic(r.filePath, data); err != nil {
		return fmt.Errorf("%w: save block list: %w", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}
