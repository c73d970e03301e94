// Package parser walks a raw JSON request body into per-table TableQuery
// values plus a directive map.
//
// Key order matters: independent queries later execute in request order, so
// the parser iterates the raw document with gjson instead of an unordered
// map. Every parse builds fresh TableQuery values; nothing is recycled.
package parser

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// ParseResult is the parser's output: the per-table ASTs in request order,
// the top-level directive map, and the decoded original body.
type ParseResult struct {
	Tables     []*core.TableQuery
	Method     core.Method
	Directives map[string]any
	Original   map[string]any
}

// Parser turns raw request bodies into ParseResults. It is stateless apart
// from configuration and safe for concurrent use.
type Parser struct {
	limits core.Limits
	logger *slog.Logger
}

// New creates a parser. A nil logger discards output.
func New(limits core.Limits, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{limits: limits, logger: logger}
}

// Parse decodes one request. verb is the transport verb (GET, POST, ...);
// an explicit @method directive in the body wins over it.
func (p *Parser) Parse(body []byte, verb string) (*ParseResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.NewError(core.KindValidation, "", "request body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, core.NewError(core.KindValidation, "", "request body must be a JSON object")
	}

	var original map[string]any
	if err := json.Unmarshal(body, &original); err != nil {
		return nil, core.WrapError(core.KindValidation, "", err, "request body could not be decoded")
	}

	method, err := p.resolveMethod(root, verb)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Method:     method,
		Directives: make(map[string]any),
		Original:   original,
	}

	var walkErr error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if strings.HasPrefix(name, "@") {
			result.Directives[name] = value.Value()
			return true
		}
		tables, err := p.parseTableEntry(name, value, method, 0)
		if err != nil {
			walkErr = err
			return false
		}
		result.Tables = append(result.Tables, tables...)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	p.applyGlobalPaging(result)

	p.logger.Debug("parsed request",
		"method", method.String(),
		"tables", len(result.Tables),
		"directives", len(result.Directives))
	return result, nil
}

// resolveMethod picks the request method: an explicit @method directive
// wins; otherwise the transport verb is combined with the presence of any
// array-suffixed table key to select the list variant.
func (p *Parser) resolveMethod(root gjson.Result, verb string) (core.Method, error) {
	hasArray := false
	root.ForEach(func(key, _ gjson.Result) bool {
		name := key.String()
		if !strings.HasPrefix(name, "@") && strings.HasSuffix(tableNamePart(name), "[]") {
			hasArray = true
			return false
		}
		return true
	})

	if directive := root.Get("@method"); directive.Exists() {
		m, ok := core.MethodFromString(directive.String())
		if !ok {
			return 0, core.NewError(core.KindValidation, "", "unknown @method %q", directive.String())
		}
		return listVariant(m, hasArray), nil
	}

	m, ok := core.MethodFromString(strings.ToUpper(verb))
	if !ok {
		return 0, core.NewError(core.KindValidation, "", "unsupported request verb %q", verb)
	}
	return listVariant(m, hasArray), nil
}

// listVariant upgrades GET/HEAD to their list variants when the request
// contains an array-suffixed table key.
func listVariant(m core.Method, hasArray bool) core.Method {
	if !hasArray {
		return m
	}
	switch m {
	case core.MethodGet:
		return core.MethodGets
	case core.MethodHead:
		return core.MethodHeads
	default:
		return m
	}
}

// tableNamePart drops an optional ":alias" suffix from a table key.
func tableNamePart(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// parseTableEntry parses one top-level or nested table entry. It returns the
// entry's TableQuery followed by any child queries found while walking it.
func (p *Parser) parseTableEntry(key string, value gjson.Result, method core.Method, depth int) ([]*core.TableQuery, error) {
	name := key
	alias := ""
	if i := strings.IndexByte(key, ':'); i >= 0 {
		name, alias = key[:i], key[i+1:]
	}

	isArray := false
	if stripped, ok := strings.CutSuffix(name, "[]"); ok {
		name = stripped
		isArray = true
	}

	tq := &core.TableQuery{
		Table:      name,
		Alias:      alias,
		IsArray:    isArray,
		Depth:      depth,
		Directives: make(map[string]any),
	}

	// A table bound to an array is a batch write: POST inserts the rows,
	// PUT updates them.
	if value.IsArray() {
		return p.parseBatchEntry(tq, value, method)
	}
	if !value.IsObject() {
		return nil, core.NewError(core.KindValidation, name, "table entry must be an object or an array of objects")
	}

	tableMethod := method
	if override := value.Get("@method"); override.Exists() {
		m, ok := core.MethodFromString(override.String())
		if !ok {
			return nil, core.NewError(core.KindValidation, name, "unknown table @method %q", override.String())
		}
		tableMethod = m
	}

	tq.Op = p.resolveOperation(tableMethod, value)

	children, err := p.walkTableObject(tq, value, tableMethod, depth)
	if err != nil {
		return nil, err
	}

	p.applyDefaults(tq)
	return append([]*core.TableQuery{tq}, children...), nil
}

// parseBatchEntry handles "Table[]": [ {...}, {...} ] payload arrays.
func (p *Parser) parseBatchEntry(tq *core.TableQuery, value gjson.Result, method core.Method) ([]*core.TableQuery, error) {
	switch method {
	case core.MethodPost:
		tq.Op = core.OpInsert
	case core.MethodPut:
		tq.Op = core.OpUpdate
	default:
		return nil, core.NewError(core.KindValidation, tq.Table, "array payloads require POST or PUT, got %s", method)
	}

	var rowErr error
	value.ForEach(func(_, row gjson.Result) bool {
		if !row.IsObject() {
			rowErr = core.NewError(core.KindValidation, tq.Table, "batch rows must be objects")
			return false
		}
		m, ok := row.Value().(map[string]any)
		if !ok {
			rowErr = core.NewError(core.KindValidation, tq.Table, "batch rows must be objects")
			return false
		}
		tq.PayloadRows = append(tq.PayloadRows, m)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if len(tq.PayloadRows) == 0 {
		return nil, core.NewError(core.KindValidation, tq.Table, "batch payload is empty")
	}
	return []*core.TableQuery{tq}, nil
}

// resolveOperation maps the effective method onto an operation kind. Write
// methods fall back to a read when no id-like field is present to scope the
// write.
func (p *Parser) resolveOperation(method core.Method, value gjson.Result) core.Operation {
	switch method {
	case core.MethodHead, core.MethodHeads:
		return core.OpCount
	case core.MethodPost:
		return core.OpInsert
	case core.MethodPut:
		if p.hasIDField(value) {
			return core.OpUpdate
		}
		return core.OpSelect
	case core.MethodDelete:
		if p.hasIDField(value) {
			return core.OpDelete
		}
		return core.OpSelect
	default:
		return core.OpSelect
	}
}

// hasIDField reports whether the object carries the configured primary-key
// field, bare or with an IN suffix.
func (p *Parser) hasIDField(value gjson.Result) bool {
	found := false
	value.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if k == p.limits.IDField || k == p.limits.IDField+"[]" {
			found = true
			return false
		}
		return true
	})
	return found
}

// applyDefaults fills pagination defaults for list queries.
func (p *Parser) applyDefaults(tq *core.TableQuery) {
	if tq.IsArray && tq.Count == 0 {
		tq.Count = p.limits.DefaultCount
	}
}

// applyGlobalPaging copies top-level @count/@page/@offset onto array tables
// that did not set their own.
func (p *Parser) applyGlobalPaging(result *ParseResult) {
	count, hasCount := intDirective(result.Directives, "@count", "@limit")
	page, hasPage := intDirective(result.Directives, "@page")
	offset, hasOffset := intDirective(result.Directives, "@offset")
	total, hasTotal := result.Directives["@total"]

	for _, tq := range result.Tables {
		if !tq.IsArray {
			continue
		}
		if hasCount {
			if _, own := tq.Directives["@count"]; !own {
				if _, own := tq.Directives["@limit"]; !own {
					tq.Count = count
				}
			}
		}
		if hasPage {
			if _, own := tq.Directives["@page"]; !own {
				tq.Page = page
			}
		}
		if hasOffset {
			if _, own := tq.Directives["@offset"]; !own {
				tq.Offset = offset
				tq.HasOffset = true
			}
		}
		if hasTotal && boolValue(total) && tq.QueryType == core.QueryData {
			if _, own := tq.Directives["@query"]; !own {
				tq.QueryType = core.QueryBoth
			}
		}
	}
}

func intDirective(directives map[string]any, names ...string) (int, bool) {
	for _, name := range names {
		if raw, ok := directives[name]; ok {
			if n, err := cast.ToIntE(raw); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func boolValue(raw any) bool {
	b, err := cast.ToBoolE(raw)
	return err == nil && b
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, cast.ToString(item))
		}
		return out
	default:
		return nil
	}
}
