package query

import "strings"

// Builder assembles a SWQL SELECT statement. Zero value is ready to use;
// methods return the builder for chaining.
type Builder struct {
	columns []string
	from    string
	wheres  []string
}

// Select appends projected columns.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// From sets the table clause, including any alias.
func (b *Builder) From(table string) *Builder {
	b.from = table
	return b
}

// Where appends a condition. Conditions are parenthesized and joined with
// AND.
func (b *Builder) Where(condition string) *Builder {
	if condition != "" {
		b.wheres = append(b.wheres, condition)
	}
	return b
}

// String renders the statement.
func (b *Builder) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for i, w := range b.wheres {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString("(")
		sb.WriteString(w)
		sb.WriteString(")")
	}
	return sb.String()
}
