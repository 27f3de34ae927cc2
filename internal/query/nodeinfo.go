package query

import (
	"context"
	"fmt"
	"strings"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

// NodeInfoSpec describes a node-centric query: friendly snake_case filters
// over Orion.Nodes plus optional enrichment with each node's agent record
// and custom properties.
type NodeInfoSpec struct {
	Columns []string       `json:"columns,omitempty" yaml:"columns,omitempty"`
	Include map[string]any `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude map[string]any `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	WithAgents           bool `json:"with_agents,omitempty" yaml:"with_agents,omitempty"`
	WithCustomProperties bool `json:"with_custom_properties,omitempty" yaml:"with_custom_properties,omitempty"`
}

// defaultNodeColumns is the projection used when the caller names none.
var defaultNodeColumns = []string{
	"NodeID", "Caption", "DNS", "IPAddress", "ObjectSubType",
	"Status", "Vendor", "MachineType", "EngineID", "Unmanaged",
}

// nodeFilterColumns maps the friendly snake_case filter names onto SWIS
// column names. Unknown names pass through unchanged.
var nodeFilterColumns = map[string]string{
	"node_id":        "NodeID",
	"caption":        "Caption",
	"dns":            "DNS",
	"ip_address":     "IPAddress",
	"polling_method": "ObjectSubType",
	"status":         "Status",
	"vendor":         "Vendor",
	"machine_type":   "MachineType",
	"sys_name":       "SysName",
	"unmanaged":      "Unmanaged",
	"engine_id":      "EngineID",
}

// agentColumns is the agent projection attached to each node.
var agentColumns = []string{
	"NodeID", "AgentId", "Name", "Hostname", "DNSName", "IP", "OSVersion",
	"PollingEngineId", "ConnectionStatus", "AgentStatus", "Mode",
	"AgentVersion", "AutoUpdateEnabled", "PassiveAgentHostname",
	"PassiveAgentPort", "RegisteredOn",
}

func mapNodeFilters(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		if column, ok := nodeFilterColumns[k]; ok {
			out[column] = v
			continue
		}
		out[k] = v
	}
	return out
}

// NodeInfo runs a node query and enriches the matching nodes. NodeID is
// always projected; enrichment rows join on it.
func (r *Runner) NodeInfo(ctx context.Context, spec NodeInfoSpec) (*Info, error) {
	for _, filters := range []map[string]any{spec.Include, spec.Exclude} {
		for _, key := range []string{"custom_properties", "agent"} {
			if _, ok := filters[key]; ok {
				return nil, &domain.ValidationError{
					Field:  key,
					Reason: "filtering on enrichment data is not supported; filter on node columns and read the enrichment from the result",
				}
			}
		}
	}

	columns := spec.Columns
	if len(columns) == 0 {
		columns = defaultNodeColumns
	}
	if !containsString(columns, "NodeID") {
		columns = append([]string{"NodeID"}, columns...)
	}

	info, err := r.Run(ctx, Spec{
		BaseTable: "Orion.Nodes",
		Columns:   columns,
		Include:   mapNodeFilters(spec.Include),
		Exclude:   mapNodeFilters(spec.Exclude),
	})
	if err != nil {
		return nil, err
	}

	nodeIDs := make([]int, 0, len(info.Data))
	for _, row := range info.Data {
		if id := swis.Row(row).Int("NodeID"); id != 0 {
			nodeIDs = append(nodeIDs, id)
		}
	}
	if len(nodeIDs) == 0 {
		return info, nil
	}

	if spec.WithAgents {
		if err := r.attachAgents(ctx, info, nodeIDs); err != nil {
			return nil, err
		}
	}
	if spec.WithCustomProperties {
		if err := r.attachCustomProperties(ctx, info, nodeIDs); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (r *Runner) attachAgents(ctx context.Context, info *Info, nodeIDs []int) error {
	swql := fmt.Sprintf("SELECT %s FROM Orion.AgentManagement.Agent WHERE NodeID IN (%s)",
		strings.Join(agentColumns, ", "), joinInts(nodeIDs))
	info.Queries = append(info.Queries, swql)

	rows, err := r.svc.Query(ctx, swql, nil)
	if err != nil {
		return &domain.QueryError{Query: swql, Err: err}
	}

	byNode := map[int]map[string]any{}
	for _, row := range rows {
		byNode[row.Int("NodeID")] = map[string]any(row)
	}
	for _, node := range info.Data {
		if agent, ok := byNode[swis.Row(node).Int("NodeID")]; ok {
			node["agent"] = agent
		}
	}
	return nil
}

// attachCustomProperties discovers the installed node custom property fields
// and joins their values onto each node.
func (r *Runner) attachCustomProperties(ctx context.Context, info *Info, nodeIDs []int) error {
	fieldsQuery := "SELECT Field FROM Orion.CustomProperty WHERE TargetEntity = 'Orion.NodesCustomProperties'"
	info.Queries = append(info.Queries, fieldsQuery)

	fieldRows, err := r.svc.Query(ctx, fieldsQuery, nil)
	if err != nil {
		return &domain.QueryError{Query: fieldsQuery, Err: err}
	}
	if len(fieldRows) == 0 {
		return nil
	}
	fields := make([]string, 0, len(fieldRows))
	for _, row := range fieldRows {
		fields = append(fields, row.String("Field"))
	}

	swql := fmt.Sprintf("SELECT %s FROM Orion.NodesCustomProperties WHERE NodeID IN (%s)",
		strings.Join(append([]string{"NodeID"}, fields...), ", "), joinInts(nodeIDs))
	info.Queries = append(info.Queries, swql)

	rows, err := r.svc.Query(ctx, swql, nil)
	if err != nil {
		return &domain.QueryError{Query: swql, Err: err}
	}

	byNode := map[int]map[string]any{}
	for _, row := range rows {
		props := make(map[string]any, len(fields))
		for _, f := range fields {
			props[f] = row[f]
		}
		byNode[row.Int("NodeID")] = props
	}
	for _, node := range info.Data {
		if props, ok := byNode[swis.Row(node).Int("NodeID")]; ok {
			node["custom_properties"] = props
		}
	}
	return nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func joinInts(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}
