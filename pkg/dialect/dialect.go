// Package dialect provides SQL dialect configuration for the query builder.
//
// This package contains the public contract for dialect definitions used by
// the SQL builder and the executor. Concrete dialect implementations are
// registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite, DB2).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
	// PlaceholderColon uses :1, :2, etc. (Oracle).
	PlaceholderColon
	// PlaceholderAt uses @p1, @p2, etc. (SQL Server).
	PlaceholderAt
)

// PaginationStyle defines how a dialect expresses LIMIT/OFFSET semantics.
type PaginationStyle int

const (
	// PageLimitOffset emits "LIMIT n OFFSET m" (MySQL family, PostgreSQL,
	// SQLite, ClickHouse, TiDB).
	PageLimitOffset PaginationStyle = iota
	// PageOffsetFetch emits "OFFSET m ROWS FETCH NEXT n ROWS ONLY"
	// (SQL Server).
	PageOffsetFetch
	// PageFetchFirst emits "FETCH FIRST n ROWS ONLY" (DB2).
	PageFetchFirst
	// PageRownum appends a ROWNUM predicate to WHERE instead of a trailing
	// clause (Oracle).
	PageRownum
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Opening quote: ", `, [
	QuoteEnd string // Closing quote (] for [, else same as Quote)
	Escape   string // Escape sequence for the closing quote: "", ``, ]]
}

// Dialect represents one SQL dialect configuration. Values are immutable
// after Build; the builder pipeline shares them freely.
type Dialect struct {
	Name string

	// Identifiers defines quoting rules for reserved or unusual names.
	Identifiers IdentifierConfig

	// DefaultSchema is the schema assumed when a query names none.
	DefaultSchema string

	// Placeholder defines bind-parameter formatting.
	Placeholder PlaceholderStyle

	// Pagination defines how LIMIT/OFFSET semantics are rendered.
	Pagination PaginationStyle

	joinKeywords map[core.JoinKind]string
}

// FormatPlaceholder returns the bind placeholder for a 1-based index.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case PlaceholderColon:
		return ":" + strconv.Itoa(index)
	case PlaceholderAt:
		return "@p" + strconv.Itoa(index)
	default:
		return "?"
	}
}

// JoinKeyword returns the SQL join keyword for a join kind. APP joins never
// reach SQL; asking for one is a programming error surfaced as an error.
func (d *Dialect) JoinKeyword(kind core.JoinKind) (string, error) {
	if kind == core.JoinApp {
		return "", fmt.Errorf("APP joins are resolved in-process and have no SQL form")
	}
	if kw, ok := d.joinKeywords[kind]; ok {
		return kw, nil
	}
	return "", fmt.Errorf("dialect %s does not support %s joins", d.Name, kind)
}

// RenderPagination returns the trailing pagination fragment for the given
// page size and row offset, or "" when the dialect paginates in WHERE.
func (d *Dialect) RenderPagination(count, offset int) string {
	if count <= 0 {
		return ""
	}
	switch d.Pagination {
	case PageOffsetFetch:
		return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, count)
	case PageFetchFirst:
		return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", count)
	case PageRownum:
		return ""
	default:
		return fmt.Sprintf("LIMIT %d OFFSET %d", count, offset)
	}
}

// PaginationPredicate returns the WHERE fragment for dialects that paginate
// with a row-number predicate, or "" for the rest.
func (d *Dialect) PaginationPredicate(count, offset int) string {
	if d.Pagination != PageRownum || count <= 0 {
		return ""
	}
	return fmt.Sprintf("ROWNUM <= %d", offset+count)
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// GetName returns the dialect name. This method allows Dialect to satisfy
// interfaces that require Name() string.
func (d *Dialect) GetName() string {
	return d.Name
}

// defaultJoinKeywords is the ANSI mapping every dialect starts from.
// OUTER and SIDE are directional outer joins; FOREIGN rides on INNER; ASOF
// degrades to INNER unless the dialect overrides it.
func defaultJoinKeywords() map[core.JoinKind]string {
	return map[core.JoinKind]string{
		core.JoinInner:   "INNER JOIN",
		core.JoinFull:    "FULL JOIN",
		core.JoinLeft:    "LEFT JOIN",
		core.JoinRight:   "RIGHT JOIN",
		core.JoinOuter:   "LEFT OUTER JOIN",
		core.JoinSide:    "RIGHT OUTER JOIN",
		core.JoinAnti:    "LEFT JOIN",
		core.JoinForeign: "INNER JOIN",
		core.JoinAsof:    "INNER JOIN",
	}
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name and the ANSI
// defaults: double-quoted identifiers, ? placeholders, LIMIT/OFFSET paging.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: IdentifierConfig{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			joinKeywords: defaultJoinKeywords(),
		},
	}
}

// Identifiers configures identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.Identifiers = IdentifierConfig{Quote: quote, QuoteEnd: quoteEnd, Escape: escape}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how bind parameters are formatted.
func (b *Builder) PlaceholderStyle(style PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// PaginationStyle sets how pagination is rendered.
func (b *Builder) PaginationStyle(style PaginationStyle) *Builder {
	b.dialect.Pagination = style
	return b
}

// JoinKeyword overrides the SQL keyword for one join kind.
func (b *Builder) JoinKeyword(kind core.JoinKind, keyword string) *Builder {
	b.dialect.joinKeywords[kind] = keyword
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
