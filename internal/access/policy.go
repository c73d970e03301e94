// Package access implements the pluggable access-policy collaborator: a
// role-grant table consulted for mutating operations, plus JWT-backed
// identity extraction for the HTTP boundary.
package access

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// Grant lists which methods a role may run on a table. An empty table name
// is the wildcard row applying to every table without its own grant.
type Grant struct {
	Table   string   `koanf:"table"`
	Roles   []string `koanf:"roles"`
	Methods []string `koanf:"methods"`
}

// Policy is a static role-grant policy loaded from configuration.
type Policy struct {
	grants []Grant
	logger *slog.Logger
}

var _ core.AccessPolicy = (*Policy)(nil)

// NewPolicy creates a policy from configured grants. No grants means every
// check passes, matching an open development setup.
func NewPolicy(grants []Grant, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Policy{grants: grants, logger: logger}
}

// CheckAccess reports whether the role may run the method on the table. The
// most specific grant wins: an exact table row before the wildcard row.
func (p *Policy) CheckAccess(_ context.Context, table string, method core.Method, role string) (bool, error) {
	if len(p.grants) == 0 {
		return true, nil
	}

	grant := p.findGrant(table)
	if grant == nil {
		return false, nil
	}
	if !matchesAny(grant.Roles, role) {
		return false, nil
	}
	return matchesAny(grant.Methods, method.String()), nil
}

// CheckContent vets a mutation payload. Fields starting with an underscore
// are reserved for internal bookkeeping and may not be written by callers.
func (p *Policy) CheckContent(_ context.Context, _ core.Method, table string, target *core.TableQuery, payload map[string]any) error {
	check := func(row map[string]any) error {
		for field := range row {
			if strings.HasPrefix(field, "_") {
				return core.NewError(core.KindPermission, table, "field %q is not writable", field)
			}
		}
		return nil
	}

	if payload != nil {
		if err := check(payload); err != nil {
			return err
		}
	}
	if target != nil {
		for _, row := range target.PayloadRows {
			if err := check(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Policy) findGrant(table string) *Grant {
	var wildcard *Grant
	for i := range p.grants {
		switch p.grants[i].Table {
		case table:
			return &p.grants[i]
		case "", "*":
			wildcard = &p.grants[i]
		}
	}
	return wildcard
}

func matchesAny(list []string, want string) bool {
	for _, item := range list {
		if item == "*" || strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
