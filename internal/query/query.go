package query

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

// Spec describes a dynamic query against one SWIS entity table.
type Spec struct {
	// BaseTable is the SWIS entity, e.g. "Orion.Nodes".
	BaseTable string `json:"base_table" yaml:"base_table"`

	// Columns to project from the base table. An entry of the form
	// "Relation.Column" projects a column of a nested entity instead.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// Children maps nested entity relations to their projected columns.
	Children map[string][]string `json:"children,omitempty" yaml:"children,omitempty"`

	// Include and Exclude filter rows by base-table properties. Within a
	// property, criteria are alternatives (OR); across properties they all
	// must hold (AND). Exclude negates its whole clause.
	Include map[string]any `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude map[string]any `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Filters are alternative filter groups: a row is admitted when any one
	// group matches. They combine (AND) with the top-level Include/Exclude.
	Filters []FilterGroup `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// FilterGroup is one alternative in Spec.Filters. Properties within the group
// follow the same semantics as the top-level Include/Exclude maps.
type FilterGroup struct {
	Include map[string]any `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude map[string]any `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Info is the shaped query result. Queries echoes the generated SWQL for
// diagnostics.
type Info struct {
	Data    []map[string]any `json:"data"`
	Count   int              `json:"count"`
	Queries []string         `json:"queries"`
}

// Runner executes query specs against a SWIS service.
type Runner struct {
	svc swis.Service
	log zerolog.Logger
}

// NewRunner builds a runner over the given SWIS service.
func NewRunner(svc swis.Service, log zerolog.Logger) *Runner {
	return &Runner{svc: svc, log: log.With().Str("component", "query").Logger()}
}

// tableAlias derives a short alias from the uppercase letters of the table
// name: "Orion.Nodes" becomes "o_n".
func tableAlias(table string) string {
	var letters []string
	for _, r := range table {
		if unicode.IsUpper(r) {
			letters = append(letters, string(unicode.ToLower(r)))
		}
	}
	return strings.Join(letters, "_")
}

// nestedColumnPrefix derives a collision-resistant prefix for the flattened
// columns of a nested relation.
func nestedColumnPrefix(relation string) string {
	sum := sha1.Sum([]byte(relation))
	return fmt.Sprintf("%c%x_", relation[0], sum[:2])
}

// Run generates the SWQL for the spec, executes it, and folds nested entity
// columns back into per-relation arrays.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Info, error) {
	if spec.BaseTable == "" {
		return nil, &domain.ValidationError{Field: "base_table", Reason: "required"}
	}

	baseColumns := make([]string, 0, len(spec.Columns))
	children := map[string][]string{}
	for _, c := range spec.Columns {
		if relation, column, ok := strings.Cut(c, "."); ok {
			if relation == "" || column == "" {
				return nil, &domain.ValidationError{
					Field:  "columns",
					Reason: fmt.Sprintf("malformed nested column %q", c),
				}
			}
			children[relation] = append(children[relation], column)
			continue
		}
		baseColumns = append(baseColumns, c)
	}
	for relation, columns := range spec.Children {
		if relation == "" {
			return nil, &domain.ValidationError{
				Field:  "children",
				Reason: "relation name must not be empty",
			}
		}
		children[relation] = append(children[relation], columns...)
	}

	alias := tableAlias(spec.BaseTable)

	projected := append([]string{}, baseColumns...)
	for _, relation := range sortedKeys(children) {
		prefix := nestedColumnPrefix(relation)
		for _, column := range children[relation] {
			projected = append(projected,
				fmt.Sprintf("%s.%s.%s AS %s%s", alias, relation, column, prefix, column))
		}
	}
	if len(projected) == 0 {
		projected = []string{"1 AS no_output_columns"}
	}

	b := new(Builder).
		Select(projected...).
		From(fmt.Sprintf("%s AS %s", spec.BaseTable, alias))

	if len(spec.Include) > 0 {
		clause, err := whereClause(alias, spec.Include)
		if err != nil {
			return nil, err
		}
		b.Where(clause)
	}
	if len(spec.Exclude) > 0 {
		clause, err := whereClause(alias, spec.Exclude)
		if err != nil {
			return nil, err
		}
		b.Where("NOT (" + clause + ")")
	}
	if len(spec.Filters) > 0 {
		clause, err := groupClause(alias, spec.Filters)
		if err != nil {
			return nil, err
		}
		b.Where(clause)
	}

	swql := b.String()
	r.log.Debug().Str("swql", swql).Msg("generated query")

	rows, err := r.svc.Query(ctx, swql, nil)
	if err != nil {
		return nil, &domain.QueryError{Query: swql, Err: err}
	}

	info := &Info{Queries: []string{swql}}
	if len(children) == 0 {
		for _, row := range rows {
			info.Data = append(info.Data, map[string]any(row))
		}
	} else {
		info.Data = foldChildren(rows, baseColumns, children)
	}
	info.Count = len(info.Data)
	return info, nil
}

// foldChildren groups rows by their base-column tuple and collects the
// prefixed nested columns into per-relation arrays, dropping duplicate
// nested entries.
func foldChildren(rows []swis.Row, baseColumns []string, children map[string][]string) []map[string]any {
	var order []string
	grouped := map[string]map[string]any{}

	for _, row := range rows {
		unique := map[string]any{}
		for _, c := range baseColumns {
			unique[c] = row[c]
		}
		key := canonical(unique)

		entry, ok := grouped[key]
		if !ok {
			entry = unique
			for relation := range children {
				entry[relation] = []map[string]any{}
			}
			grouped[key] = entry
			order = append(order, key)
		}

		for relation := range children {
			prefix := nestedColumnPrefix(relation)
			nested := map[string]any{}
			for k, v := range row {
				if strings.HasPrefix(k, prefix) {
					nested[strings.TrimPrefix(k, prefix)] = v
				}
			}
			if len(nested) == 0 {
				continue
			}
			existing := entry[relation].([]map[string]any)
			if !containsEntry(existing, nested) {
				entry[relation] = append(existing, nested)
			}
		}
	}

	data := make([]map[string]any, 0, len(order))
	for _, key := range order {
		data = append(data, grouped[key])
	}
	return data
}

func containsEntry(entries []map[string]any, candidate map[string]any) bool {
	want := canonical(candidate)
	for _, e := range entries {
		if canonical(e) == want {
			return true
		}
	}
	return false
}

// canonical renders a map deterministically for grouping and deduplication.
// Map keys are sorted by encoding/json.
func canonical(m map[string]any) string {
	b, _ := json.Marshal(m)
	return string(b)
}

// groupClause renders alternative filter groups, OR'd together. An empty
// group matches everything and so makes the whole clause vacuous.
func groupClause(alias string, groups []FilterGroup) (string, error) {
	clauses := make([]string, 0, len(groups))
	for _, g := range groups {
		var parts []string
		if len(g.Include) > 0 {
			clause, err := whereClause(alias, g.Include)
			if err != nil {
				return "", err
			}
			parts = append(parts, clause)
		}
		if len(g.Exclude) > 0 {
			clause, err := whereClause(alias, g.Exclude)
			if err != nil {
				return "", err
			}
			parts = append(parts, "NOT ("+clause+")")
		}
		if len(parts) == 0 {
			return "", nil
		}
		clauses = append(clauses, "("+strings.Join(parts, " AND ")+")")
	}
	return strings.Join(clauses, " OR "), nil
}

// whereClause renders property filters: criteria within a property are OR'd,
// properties are AND'd.
func whereClause(alias string, filters map[string]any) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, property := range sortedKeys(filters) {
		criteria, err := columnCriteria(filters[property])
		if err != nil {
			return "", &domain.QueryError{
				Err: fmt.Errorf("filter for property %q: %w", property, err),
			}
		}
		alternatives := make([]string, 0, len(criteria))
		for _, c := range criteria {
			alternatives = append(alternatives,
				fmt.Sprintf("%s.%s %s %s", alias, property, c.op, c.value))
		}
		parts = append(parts, "("+strings.Join(alternatives, " OR ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

type criterion struct {
	op    string
	value string
}

// columnCriteria converts one property's filter content into SWQL
// comparisons. Strings match via LIKE (use % wildcards); timestamps, bools
// and numbers compare by equality; {min: x} and {max: x} become range bounds.
func columnCriteria(content any) ([]criterion, error) {
	switch v := content.(type) {
	case map[string]any:
		criteria := make([]criterion, 0, len(v))
		for _, bound := range sortedKeys(v) {
			op := ""
			switch bound {
			case "min":
				op = ">="
			case "max":
				op = "<="
			default:
				return nil, fmt.Errorf("unknown range bound %q", bound)
			}
			inner, err := columnCriteria(v[bound])
			if err != nil || len(inner) == 0 {
				return nil, fmt.Errorf("bad %s bound: %v", bound, v[bound])
			}
			criteria = append(criteria, criterion{op: op, value: inner[0].value})
		}
		return criteria, nil

	case []any:
		var criteria []criterion
		for _, item := range v {
			if item == nil {
				continue
			}
			inner, err := columnCriteria(item)
			if err != nil {
				return nil, err
			}
			criteria = append(criteria, inner...)
		}
		if len(criteria) == 0 {
			return nil, fmt.Errorf("no usable criteria")
		}
		return criteria, nil

	case string:
		if isTimestamp(v) {
			return []criterion{{op: "=", value: quote(v)}}, nil
		}
		switch strings.ToLower(v) {
		case "yes", "on", "true":
			return []criterion{{op: "=", value: "true"}}, nil
		case "no", "off", "false":
			return []criterion{{op: "=", value: "false"}}, nil
		}
		return []criterion{{op: "LIKE", value: quote(v)}}, nil

	case bool:
		return []criterion{{op: "=", value: fmt.Sprint(v)}}, nil

	case int, int64, float64, json.Number:
		return []criterion{{op: "=", value: fmt.Sprint(v)}}, nil
	}

	return nil, fmt.Errorf("unsupported criteria type %T", content)
}

func isTimestamp(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
