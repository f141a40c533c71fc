package repo_test

import (
	"testing"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo"
	"github.com/hamed0406/sitepulse/internal/repo/memory"
	pg "github.com/hamed0406/sitepulse/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Gateway = memory.New(domain.DefaultCheckConfig())

	// Postgres store types compile against the interfaces, too.
	var _ repo.Gateway = (*pg.Store)(nil)
}
