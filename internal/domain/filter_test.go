package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		f := Filter{}
		assert.True(t, f.Matches(FilterTarget{Name: "anything", Type: "whatever"}))
		assert.True(t, f.Matches(FilterTarget{}))
	})

	t.Run("name criterion is an unanchored regex", func(t *testing.T) {
		f := Filter{Name: "/run"}
		assert.True(t, f.Matches(Volume{DisplayName: "/run"}.FilterTarget()))
		assert.True(t, f.Matches(Volume{DisplayName: "/run/lock"}.FilterTarget()))
		assert.False(t, f.Matches(Volume{DisplayName: "/data"}.FilterTarget()))
	})

	t.Run("type criterion", func(t *testing.T) {
		f := Filter{Type: "RAM"}
		assert.True(t, f.Matches(Volume{DisplayName: "Physical Memory", Type: "RAM"}.FilterTarget()))
		assert.False(t, f.Matches(Volume{DisplayName: "/", Type: "Fixed Disk"}.FilterTarget()))
	})

	t.Run("all given criteria must match", func(t *testing.T) {
		f := Filter{Name: "^lo$", Type: "loopback"}
		assert.True(t, f.Matches(FilterTarget{Name: "lo", Type: "loopback"}))
		assert.False(t, f.Matches(FilterTarget{Name: "lo", Type: "ethernet"}))
		assert.False(t, f.Matches(FilterTarget{Name: "eth0", Type: "loopback"}))
	})

	t.Run("prop equality", func(t *testing.T) {
		f := Filter{Prop: "Descr", Op: FilterOpEquals, Val: "Loopback"}
		assert.True(t, f.Matches(Interface{Name: "lo", Descr: "Loopback"}.FilterTarget()))
		assert.False(t, f.Matches(Interface{Name: "eth0", Descr: "Ethernet"}.FilterTarget()))
	})

	t.Run("prop with empty op defaults to equality", func(t *testing.T) {
		f := Filter{Prop: "Name", Val: "eth0"}
		assert.True(t, f.Matches(Interface{Name: "eth0"}.FilterTarget()))
		assert.False(t, f.Matches(Interface{Name: "eth1"}.FilterTarget()))
	})

	t.Run("prop regex and negated regex", func(t *testing.T) {
		re := Filter{Prop: "Name", Op: FilterOpRegex, Val: "^docker"}
		assert.True(t, re.Matches(Interface{Name: "docker0"}.FilterTarget()))
		assert.False(t, re.Matches(Interface{Name: "eth0"}.FilterTarget()))

		nre := Filter{Prop: "Name", Op: FilterOpNotRegex, Val: "^docker"}
		assert.False(t, nre.Matches(Interface{Name: "docker0"}.FilterTarget()))
		assert.True(t, nre.Matches(Interface{Name: "eth0"}.FilterTarget()))
	})
}

func TestVolumeFilterRemoval(t *testing.T) {
	// Only the matching volume is selected for removal; the rest remain.
	volumes := []Volume{
		{DisplayName: "RAM"},
		{DisplayName: "/run"},
		{DisplayName: "/data"},
	}
	filters := []Filter{{Name: "/run"}}

	var removed []string
	for _, v := range volumes {
		if AnyMatches(filters, v.FilterTarget()) {
			removed = append(removed, v.DisplayName)
		}
	}
	assert.Equal(t, []string{"/run"}, removed)
}

func TestAcceptedByExpressions(t *testing.T) {
	t.Run("negated regex excludes matching interfaces", func(t *testing.T) {
		exprs := []Filter{{Prop: "Name", Op: FilterOpNotRegex, Val: "^docker"}}

		assert.False(t, AcceptedByExpressions(exprs, Interface{Name: "docker0"}.FilterTarget()))
		assert.True(t, AcceptedByExpressions(exprs, Interface{Name: "eth0"}.FilterTarget()))
	})

	t.Run("empty expression list accepts everything", func(t *testing.T) {
		assert.True(t, AcceptedByExpressions(nil, Interface{Name: "docker0"}.FilterTarget()))
	})

	t.Run("expressions are conjunctive", func(t *testing.T) {
		exprs := []Filter{
			{Prop: "Name", Op: FilterOpNotRegex, Val: "^docker"},
			{Prop: "Descr", Op: FilterOpNotRegex, Val: "^$"},
		}
		assert.True(t, AcceptedByExpressions(exprs, Interface{Name: "eth0", Descr: "uplink"}.FilterTarget()))
		assert.False(t, AcceptedByExpressions(exprs, Interface{Name: "eth1", Descr: ""}.FilterTarget()))
	})
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"empty filter", Filter{}, false},
		{"valid name regex", Filter{Name: "^eth[0-9]+$"}, false},
		{"invalid name regex", Filter{Name: "(unclosed"}, true},
		{"invalid type regex", Filter{Type: "["}, true},
		{"valid prop regex", Filter{Prop: "Name", Op: FilterOpRegex, Val: "^docker"}, false},
		{"invalid prop regex", Filter{Prop: "Name", Op: FilterOpNotRegex, Val: "("}, true},
		{"equality never needs a pattern", Filter{Prop: "Name", Op: FilterOpEquals, Val: "("}, false},
		{"unknown operator", Filter{Prop: "Name", Op: "Like", Val: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilters(t *testing.T) {
	err := ValidateFilters("volume_filters", []Filter{{Name: "ok"}, {Name: "("}})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "volume_filters", verr.Field)
}
