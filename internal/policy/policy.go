// Package policy holds the pure decision rules of the gate: which foreground
// packages are eligible for enforcement, and when the morning window is open.
package policy

import (
	"strings"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// SelfPackage is the package id of the gate itself.
const SelfPackage = "journalgate"

// Filter decides whether a foreground package may be acted on.
// It is immutable after construction and safe for concurrent use.
type Filter struct {
	self   string
	exempt domain.PackageSet
}

// NewFilter creates a filter for this platform's system and launcher packages.
func NewFilter() *Filter {
	return NewFilterWithExempt(SelfPackage, SystemPackages())
}

// NewFilterWithExempt creates a filter with a custom exemption set (for testing).
func NewFilterWithExempt(self string, exempt domain.PackageSet) *Filter {
	if exempt == nil {
		exempt = domain.NewPackageSet()
	}
	return &Filter{self: strings.ToLower(self), exempt: exempt}
}

// IsSelf reports whether pkg is the gate itself.
func (f *Filter) IsSelf(pkg string) bool {
	return strings.EqualFold(pkg, f.self)
}

// IsExempt reports whether pkg is a system or launcher package.
func (f *Filter) IsExempt(pkg string) bool {
	return f.exempt.Contains(pkg)
}

// Eligible reports whether pkg is a blocked, non-exempt, non-self package.
func (f *Filter) Eligible(pkg string, blocked domain.PackageSet) bool {
	if pkg == "" || f.IsSelf(pkg) || f.IsExempt(pkg) {
		return false
	}
	return blocked.Contains(pkg)
}
