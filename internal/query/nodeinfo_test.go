package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

// routingSWIS dispatches canned responses on SWQL substrings.
type routingSWIS struct {
	responses map[string][]swis.Row
	swql      []string
}

func (s *routingSWIS) Query(_ context.Context, swql string, _ map[string]any) ([]swis.Row, error) {
	s.swql = append(s.swql, swql)
	for needle, rows := range s.responses {
		if strings.Contains(swql, needle) {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("no canned response for: %s", swql)
}

func (s *routingSWIS) Invoke(context.Context, string, string, ...any) (json.RawMessage, error) {
	return nil, fmt.Errorf("not implemented")
}
func (s *routingSWIS) Create(context.Context, string, map[string]any) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (s *routingSWIS) Read(context.Context, string) (swis.Row, error) {
	return nil, fmt.Errorf("not implemented")
}
func (s *routingSWIS) Update(context.Context, string, map[string]any) error {
	return fmt.Errorf("not implemented")
}
func (s *routingSWIS) Delete(context.Context, string) error {
	return fmt.Errorf("not implemented")
}

func TestNodeInfo(t *testing.T) {
	stub := &routingSWIS{responses: map[string][]swis.Row{
		"FROM Orion.Nodes AS": {
			{"NodeID": 42, "Caption": "server1"},
			{"NodeID": 43, "Caption": "server2"},
		},
		"FROM Orion.AgentManagement.Agent": {
			{"NodeID": 42, "AgentVersion": "2024.1", "Mode": "Passive"},
		},
		"FROM Orion.CustomProperty ": {
			{"Field": "Environment"},
			{"Field": "Team"},
		},
		"FROM Orion.NodesCustomProperties": {
			{"NodeID": 42, "Environment": "prod", "Team": "netops"},
			{"NodeID": 43, "Environment": "staging", "Team": nil},
		},
	}}
	r := NewRunner(stub, zerolog.Nop())

	info, err := r.NodeInfo(context.Background(), NodeInfoSpec{
		Include:              map[string]any{"caption": "server"},
		WithAgents:           true,
		WithCustomProperties: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, info.Count)

	// Friendly filter names map to SWIS columns.
	assert.Contains(t, stub.swql[0], "o_n.Caption LIKE 'server'")

	agent, ok := info.Data[0]["agent"].(map[string]any)
	require.True(t, ok, "node 42 should carry its agent row")
	assert.Equal(t, "2024.1", agent["AgentVersion"])
	assert.NotContains(t, info.Data[1], "agent", "node 43 has no agent")

	props, ok := info.Data[0]["custom_properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "prod", props["Environment"])

	assert.GreaterOrEqual(t, len(info.Queries), 3, "generated queries are echoed")
}

func TestNodeInfoAlwaysProjectsNodeID(t *testing.T) {
	stub := &routingSWIS{responses: map[string][]swis.Row{
		"FROM Orion.Nodes AS": {},
	}}
	r := NewRunner(stub, zerolog.Nop())

	_, err := r.NodeInfo(context.Background(), NodeInfoSpec{Columns: []string{"Caption"}})
	require.NoError(t, err)
	assert.Contains(t, stub.swql[0], "SELECT NodeID, Caption")
}

func TestNodeInfoRejectsEnrichmentFilters(t *testing.T) {
	stub := &routingSWIS{}
	r := NewRunner(stub, zerolog.Nop())

	_, err := r.NodeInfo(context.Background(), NodeInfoSpec{
		Include: map[string]any{"custom_properties": map[string]any{"Environment": "prod"}},
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "custom_properties", verr.Field)
	assert.Empty(t, stub.swql, "rejected filters must not reach the remote service")
}

func TestNodeInfoSkipsEnrichmentWithoutMatches(t *testing.T) {
	stub := &routingSWIS{responses: map[string][]swis.Row{
		"FROM Orion.Nodes AS": {},
	}}
	r := NewRunner(stub, zerolog.Nop())

	info, err := r.NodeInfo(context.Background(), NodeInfoSpec{
		WithAgents:           true,
		WithCustomProperties: true,
	})
	require.NoError(t, err)
	assert.Zero(t, info.Count)
	assert.Len(t, stub.swql, 1, "no enrichment queries when nothing matched")
}
