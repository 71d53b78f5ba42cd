package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

func TestRulesRepositoryMissingFile(t *testing.T) {
	repo, err := NewRulesRepository(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatalf("NewRulesRepository: %v", err)
	}

	if _, err := repo.LoadRules(context.Background()); !errors.Is(err, sharedErrors.ErrRulesMissing) {
		t.Fatalf("expected ErrRulesMissing, got %v", err)
	}
	if _, err := os.Stat(repo.Path()); !os.IsNotExist(err) {
		t.Fatal("constructor must not create the rule file")
	}
}

func TestRulesRepositoryRoundTrip(t *testing.T) {
	repo, err := NewRulesRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewRulesRepository: %v", err)
	}

	want := rules.DefaultRuleSet()
	if err := repo.SaveRules(context.Background(), want); err != nil {
		t.Fatalf("SaveRules: %v", err)
	}
	got, err := repo.LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadRules() = %+v, want %+v", got, want)
	}
}

func TestRulesRepositoryReadsHandWrittenYAML(t *testing.T) {
	dir := t.TempDir()
	content := "blocked_domains:\n  - ads.example\nmalicious_patterns:\n  - 'eval\\s*\\('\n"
	if err := os.WriteFile(filepath.Join(dir, "security_rules.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	repo, _ := NewRulesRepository(dir)

	got, err := repo.LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(got.BlockedDomains) != 1 || got.BlockedDomains[0] != "ads.example" {
		t.Errorf("unexpected domains %v", got.BlockedDomains)
	}
	if len(got.MaliciousPatterns) != 1 || got.MaliciousPatterns[0] != `eval\s*\(` {
		t.Errorf("unexpected patterns %v", got.MaliciousPatterns)
	}
}

func TestRulesRepositoryMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "security_rules.yaml"), []byte("blocked_domains: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo, _ := NewRulesRepository(dir)

	_, err := repo.LoadRules(context.Background())
	var lerr *sharedErrors.RuleLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected RuleLoadError, got %v", err)
	}
	if !errors.Is(err, sharedErrors.ErrDeserializationFailed) {
		t.Errorf("expected ErrDeserializationFailed in chain, got %v", err)
	}
}

func TestBlockListRepository(t *testing.T) {
	repo, err := NewBlockListRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlockListRepository: %v", err)
	}

	if _, err := repo.LoadBlockList(context.Background()); !errors.Is(err, sharedErrors.ErrRulesMissing) {
		t.Fatalf("expected ErrRulesMissing, got %v", err)
	}

	want := rules.BlockList{BlockedIPs: []string{"10.0.0.50", "192.168.1.100"}}
	if err := repo.SaveBlockList(context.Background(), want); err != nil {
		t.Fatalf("SaveBlockList: %v", err)
	}
	got, err := repo.LoadBlockList(context.Background())
	if err != nil {
		t.Fatalf("LoadBlockList: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadBlockList() = %+v, want %+v", got, want)
	}

	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var lerr *sharedErrors.RuleLoadError
	if _, err := repo.LoadBlockList(context.Background()); !errors.As(err, &lerr) {
		t.Fatalf("expected RuleLoadError for malformed file, got %v", err)
	}
}
