// Package file stores the interceptor rules and firewall block list as files
// in the config directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"github.com/khanhnv2901/sparrow-cli/internal/shared/security"
)

// rulesDTO is the YAML layout of security_rules.yaml
type rulesDTO struct {
	BlockedDomains    []string `yaml:"blocked_domains"`
	MaliciousPatterns []string `yaml:"malicious_patterns"`
}

// RulesRepository implements rules.RuleRepository on a YAML file
type RulesRepository struct {
	filePath string
	mu       sync.RWMutex
}

// NewRulesRepository creates a repository for security_rules.yaml inside dir.
// Unlike the block list, the file is not created here: a missing file is how
// callers learn that defaults must be adopted.
func NewRulesRepository(dir string) (*RulesRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("config directory cannot be empty")
	}
	path, err := security.ConfigFile(dir, consts.DefaultRulesFile)
	if err != nil {
		return nil, fmt.Errorf("invalid rules path: %w", err)
	}
	return &RulesRepository{filePath: path}, nil
}

// Path returns the rule file location.
func (r *RulesRepository) Path() string { return r.filePath }

// LoadRules reads and decodes the rule file
func (r *RulesRepository) LoadRules(ctx context.Context) (rules.RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rules.RuleSet{}, sharedErrors.ErrRulesMissing
		}
		return rules.RuleSet{}, &sharedErrors.RuleLoadError{Path: r.filePath, Err: err}
	}

	var dto rulesDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return rules.RuleSet{}, &sharedErrors.RuleLoadError{
			Path: r.filePath,
			Err:  fmt.Errorf("%w: %w", sharedErrors.ErrDeserializationFailed, err),
		}
	}

	return rules.RuleSet{
		BlockedDomains:    dto.BlockedDomains,
		MaliciousPatterns: dto.MaliciousPatterns,
	}, nil
}

// SaveRules writes the rule set, replacing the file atomically
func (r *RulesRepository) SaveRules(ctx context.Context, set rules.RuleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dto := rulesDTO{
		BlockedDomains:    nonNil(set.BlockedDomains),
		MaliciousPatterns: nonNil(set.MaliciousPatterns),
	}
	data, err := yaml.Marshal(&dto)
	if err != nil {
		return fmt.Errorf("%w: %w", sharedErrors.ErrSerializationFailed, err)
	}
	if err := writeFileAtomic(r.filePath, data); err != nil {
		return fmt.Errorf("%w: save rules: %w", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(consts.DefaultFilePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
