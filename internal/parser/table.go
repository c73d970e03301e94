package parser

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/declsql/internal/grammar"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// walkTableObject classifies every key inside a table object: directives,
// references, APP-join children, nested child tables, and plain conditions
// or payload fields. It returns child TableQueries found while walking.
func (p *Parser) walkTableObject(tq *core.TableQuery, value gjson.Result, method core.Method, depth int) ([]*core.TableQuery, error) {
	var children []*core.TableQuery
	var walkErr error

	value.ForEach(func(key, item gjson.Result) bool {
		name := key.String()

		switch {
		case strings.HasPrefix(name, "@"):
			tq.Directives[name] = item.Value()
			walkErr = p.applyDirective(tq, name, item)

		case strings.HasSuffix(name, "@"):
			sub, err := p.walkReferenceKey(tq, name, item, depth)
			if err != nil {
				walkErr = err
				return false
			}
			children = append(children, sub...)

		case isChildTableKey(name, item):
			sub, err := p.parseTableEntry(name, item, method, depth+1)
			if err != nil {
				walkErr = err
				return false
			}
			children = append(children, sub...)

		case tq.Op == core.OpInsert:
			setPayload(tq, name, item.Value())

		case tq.Op == core.OpUpdate && !isConditionKeyForUpdate(name, p.limits.IDField):
			setPayload(tq, name, item.Value())

		default:
			cond, err := p.parseCondition(tq.Table, name, item)
			if err != nil {
				walkErr = err
				return false
			}
			tq.Conditions = append(tq.Conditions, cond)
		}
		return walkErr == nil
	})

	return children, walkErr
}

func setPayload(tq *core.TableQuery, field string, value any) {
	if tq.Payload == nil {
		tq.Payload = make(map[string]any)
	}
	tq.Payload[field] = value
}

// walkReferenceKey handles the "@"-suffixed key family. A string value is a
// reference path; an object with @from is a subquery condition; any other
// object under an upper-cased "Table@" key is an application-side join child.
func (p *Parser) walkReferenceKey(tq *core.TableQuery, name string, item gjson.Result, depth int) ([]*core.TableQuery, error) {
	if field, isArrayRef, ok := grammar.Reference(name); ok && item.Type == gjson.String {
		ref := core.Reference{OwnerField: field, Path: item.String(), IsArray: isArrayRef}
		tq.Refs = append(tq.Refs, ref)
		// Held as a placeholder value until the scheduler substitutes the
		// resolved one. Writes reference into the payload, reads into the
		// condition list.
		if tq.Op == core.OpInsert || (tq.Op == core.OpUpdate && !isConditionKeyForUpdate(field, p.limits.IDField)) {
			setPayload(tq, field, ref)
			return nil, nil
		}
		op := core.OpEq
		if isArrayRef {
			op = core.OpIn
		}
		tq.Conditions = append(tq.Conditions, core.Condition{Field: field, Op: op, Value: ref})
		return nil, nil
	}

	if !item.IsObject() {
		return nil, core.NewError(core.KindCondition, tq.Table,
			"key %q must carry a reference path or an object", name)
	}

	if item.Get("@from").Exists() {
		inner := strings.TrimSuffix(name, "@")
		decoded := grammar.Decode(inner)
		sub, err := p.parseSubquery(tq.Table, item)
		if err != nil {
			return nil, err
		}
		tq.Conditions = append(tq.Conditions, core.Condition{Field: decoded.Field, Op: decoded.Op, Value: sub})
		return nil, nil
	}

	table := strings.TrimSuffix(name, "@")
	if !core.ValidIdentifier(table) || table[0] < 'A' || table[0] > 'Z' {
		return nil, core.NewError(core.KindCondition, tq.Table,
			"object under %q is neither a subquery (@from) nor a joined table", name)
	}
	tq.Joins = append(tq.Joins, core.Join{Kind: core.JoinApp, Table: table})
	return p.parseTableEntry(table, item, core.MethodGet, depth+1)
}

// isChildTableKey matches nested table objects: an upper-cased identifier
// (optionally array-suffixed) bound to an object.
func isChildTableKey(name string, item gjson.Result) bool {
	if !item.IsObject() {
		return false
	}
	bare := strings.TrimSuffix(tableNamePart(name), "[]")
	if !core.ValidIdentifier(bare) {
		return false
	}
	return bare[0] >= 'A' && bare[0] <= 'Z'
}

// isConditionKeyForUpdate reports whether an UPDATE key scopes the write
// (the id field, bare or set-valued) rather than carrying payload.
func isConditionKeyForUpdate(name, idField string) bool {
	return name == idField || name == idField+"[]" || name == idField+"{}"
}

// parseCondition decodes one condition key. Object values build subqueries
// or logical groups; everything else is a plain (field, op, value) triple.
func (p *Parser) parseCondition(table, name string, item gjson.Result) (core.Condition, error) {
	decoded := grammar.Decode(name)

	if decoded.Op.IsGroup() {
		nested, err := p.parseConditionGroup(table, item)
		if err != nil {
			return core.Condition{}, err
		}
		return core.Condition{Op: decoded.Op, Nested: nested}, nil
	}

	if item.IsObject() {
		if item.Get("@from").Exists() {
			inner := grammar.Decode(strings.TrimSuffix(name, "@"))
			sub, err := p.parseSubquery(table, item)
			if err != nil {
				return core.Condition{}, err
			}
			return core.Condition{Field: inner.Field, Op: inner.Op, Value: sub}, nil
		}
		return core.Condition{}, core.NewError(core.KindCondition, table,
			"condition %q has an object value without @from", name)
	}

	return core.Condition{Field: decoded.Field, Op: decoded.Op, Value: item.Value()}, nil
}

// parseConditionGroup walks a $and/$or/$not object into nested conditions.
func (p *Parser) parseConditionGroup(table string, item gjson.Result) ([]core.Condition, error) {
	if !item.IsObject() {
		return nil, core.NewError(core.KindCondition, table, "logical group value must be an object")
	}
	var conds []core.Condition
	var walkErr error
	item.ForEach(func(key, value gjson.Result) bool {
		cond, err := p.parseCondition(table, key.String(), value)
		if err != nil {
			walkErr = err
			return false
		}
		conds = append(conds, cond)
		return true
	})
	return conds, walkErr
}

// parseSubquery decodes {"@from": "Table", "@column": "...", "@range":
// "ALL|ANY", ...conditions} into a Subquery compiled later by the builder.
func (p *Parser) parseSubquery(table string, item gjson.Result) (*core.Subquery, error) {
	sub := &core.Subquery{Kind: core.SubWhere}

	var walkErr error
	item.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "@from":
			sub.From = value.String()
		case "@column":
			sub.Columns = splitColumns(value.String())
		case "@range":
			switch strings.ToUpper(value.String()) {
			case "ALL":
				sub.Range = core.RangeAll
			case "ANY":
				sub.Range = core.RangeAny
			case "":
				sub.Range = core.RangeNone
			default:
				walkErr = core.NewError(core.KindCondition, table,
					"subquery @range must be ALL or ANY, got %q", value.String())
			}
		case "@exists":
			if boolValue(value.Value()) {
				sub.Kind = core.SubExists
			}
		default:
			cond, err := p.parseCondition(table, key.String(), value)
			if err != nil {
				walkErr = err
				return false
			}
			sub.Conditions = append(sub.Conditions, cond)
		}
		return walkErr == nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if sub.From == "" {
		return nil, core.NewError(core.KindCondition, table, "subquery is missing @from")
	}
	return sub, nil
}

// applyDirective populates the TableQuery field matching a table-local
// directive. Value coercion is permissive here; the verifier reports shape
// violations against the raw directive map.
func (p *Parser) applyDirective(tq *core.TableQuery, name string, item gjson.Result) error {
	switch name {
	case "@method":
		// Consumed during operation resolution.
	case "@column":
		tq.Columns = splitColumns(item.String())
	case "@join":
		return p.parseJoins(tq, item)
	case "@group":
		tq.Group = stringList(item.Value())
	case "@having":
		return p.parseHaving(tq, item)
	case "@order":
		tq.Order = parseOrder(item.Value())
	case "@count", "@limit":
		if n, err := cast.ToIntE(item.Value()); err == nil {
			tq.Count = n
		}
	case "@page":
		if n, err := cast.ToIntE(item.Value()); err == nil {
			tq.Page = n
		}
	case "@offset":
		if n, err := cast.ToIntE(item.Value()); err == nil {
			tq.Offset = n
			tq.HasOffset = true
		}
	case "@query":
		tq.QueryType = parseQueryType(item)
	case "@total":
		// Shorthand for "@query": 2 unless an explicit @query already chose.
		if boolValue(item.Value()) && tq.QueryType == core.QueryData {
			tq.QueryType = core.QueryBoth
		}
	case "@search":
		// Carried through in tq.Directives for the response formatter.
	case "@cache":
		p.parseCacheDirective(tq, item)
	case "@explain":
		tq.Explain = boolValue(item.Value())
	case "@role":
		tq.Role = item.String()
	case "@database":
		tq.Database = item.String()
	case "@schema":
		tq.Schema = item.String()
	}
	// Unknown directives stay in tq.Directives for the verifier to reject.
	return nil
}

// parseJoins decodes the @join directive. Each entry is a symbol-prefixed
// path, "</Comment/momentId": kind symbol, joined table, join key. An
// object-valued entry carries extra ON conditions.
func (p *Parser) parseJoins(tq *core.TableQuery, item gjson.Result) error {
	addJoin := func(spec string, on gjson.Result) error {
		join, err := parseJoinSpec(tq.Table, spec)
		if err != nil {
			return err
		}
		if on.Exists() && on.IsObject() {
			var onErr error
			on.ForEach(func(key, value gjson.Result) bool {
				cond, err := p.parseCondition(tq.Table, key.String(), value)
				if err != nil {
					onErr = err
					return false
				}
				join.On = append(join.On, cond)
				return true
			})
			if onErr != nil {
				return onErr
			}
		}
		tq.Joins = append(tq.Joins, join)
		return nil
	}

	switch {
	case item.Type == gjson.String:
		return addJoin(item.String(), gjson.Result{})
	case item.IsArray():
		var joinErr error
		item.ForEach(func(_, entry gjson.Result) bool {
			joinErr = addJoin(entry.String(), gjson.Result{})
			return joinErr == nil
		})
		return joinErr
	case item.IsObject():
		var joinErr error
		item.ForEach(func(key, on gjson.Result) bool {
			joinErr = addJoin(key.String(), on)
			return joinErr == nil
		})
		return joinErr
	default:
		return core.NewError(core.KindCondition, tq.Table, "@join must be a string, array, or object")
	}
}

// parseJoinSpec decodes one "</Comment/momentId" join entry.
func parseJoinSpec(table, spec string) (core.Join, error) {
	if spec == "" {
		return core.Join{}, core.NewError(core.KindCondition, table, "empty @join entry")
	}

	kind, ok := core.JoinKindForSymbol(spec[0])
	rest := spec
	if ok {
		rest = spec[1:]
	} else {
		// No symbol defaults to INNER.
		kind = core.JoinInner
	}

	rest = strings.TrimPrefix(rest, "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return core.Join{}, core.NewError(core.KindCondition, table,
			"@join entry %q must look like \"</Table/key\"", spec)
	}

	join := core.Join{Kind: kind, Table: parts[0], Key: parts[1]}
	if len(parts) >= 3 && parts[2] != "" {
		join.OwnerKey = parts[2]
	}
	return join, nil
}

// parseHaving decodes the @having directive: an object of suffix-encoded
// conditions over aggregate outputs.
func (p *Parser) parseHaving(tq *core.TableQuery, item gjson.Result) error {
	if !item.IsObject() {
		return core.NewError(core.KindCondition, tq.Table, "@having must be an object of conditions")
	}
	var walkErr error
	item.ForEach(func(key, value gjson.Result) bool {
		cond, err := p.parseCondition(tq.Table, key.String(), value)
		if err != nil {
			walkErr = err
			return false
		}
		tq.Having = append(tq.Having, cond)
		return true
	})
	return walkErr
}

// parseOrder decodes "@order": "id-,name+" or an equivalent array. A "-"
// suffix sorts descending; "+" or nothing sorts ascending.
func parseOrder(raw any) []core.OrderSpec {
	var specs []core.OrderSpec
	for _, token := range stringList(raw) {
		spec := core.OrderSpec{Field: token, Direction: core.OrderAsc}
		if field, ok := strings.CutSuffix(token, "-"); ok {
			spec = core.OrderSpec{Field: field, Direction: core.OrderDesc}
		} else if field, ok := strings.CutSuffix(token, "+"); ok {
			spec = core.OrderSpec{Field: field, Direction: core.OrderAsc}
		} else if field, ok := cutSuffixFold(token, " DESC"); ok {
			spec = core.OrderSpec{Field: field, Direction: core.OrderDesc}
		} else if field, ok := cutSuffixFold(token, " ASC"); ok {
			spec = core.OrderSpec{Field: field, Direction: core.OrderAsc}
		}
		specs = append(specs, spec)
	}
	return specs
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) > len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return strings.TrimSpace(s[:len(s)-len(suffix)]), true
	}
	return s, false
}

// parseQueryType decodes "@query": 0 data, 1 total, 2 both. String aliases
// are accepted.
func parseQueryType(item gjson.Result) core.QueryType {
	switch strings.ToLower(item.String()) {
	case "1", "total", "count":
		return core.QueryTotal
	case "2", "both", "all":
		return core.QueryBoth
	default:
		return core.QueryData
	}
}

// parseCacheDirective decodes "@cache": true or {"ttl": seconds}.
func (p *Parser) parseCacheDirective(tq *core.TableQuery, item gjson.Result) {
	if item.IsObject() {
		tq.Cache = true
		if ttl := item.Get("ttl"); ttl.Exists() {
			if n, err := cast.ToIntE(ttl.Value()); err == nil {
				tq.CacheTTLSeconds = n
			}
		}
		return
	}
	tq.Cache = boolValue(item.Value())
}

// splitColumns splits an @column value on commas and semicolons that sit
// outside parentheses, so "COUNT(*):c;AVG(age):avgAge" and "id,name" both
// work.
func splitColumns(raw string) []string {
	var cols []string
	depth := 0
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',', ';':
			if depth == 0 {
				if part := strings.TrimSpace(raw[start:i]); part != "" {
					cols = append(cols, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(raw[start:]); part != "" {
		cols = append(cols, part)
	}
	return cols
}
