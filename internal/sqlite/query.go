package sqlite

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rootsmith/lineage/pkg/types"
)

// Select runs a filtered, sorted, windowed listing. When every field the
// where-expression and order-by reference is a projected column, the
// query compiles to native SQL. A single non-projected field anywhere
// forces the whole query onto the fallback path: decode every row,
// evaluate in process, sort in process, then window. Both paths apply
// the window only after the global sort and both report the pre-window
// match count and elapsed wall time.
func (e *Engine) Select(kind string, opts types.SelectOptions) (*types.SelectResult, error) {
	started := time.Now()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return nil, err
	}

	native, err := e.planNative(ks, opts)
	if err != nil {
		return nil, err
	}

	var res *types.SelectResult
	if native {
		res, err = e.selectNative(ks, opts)
	} else {
		res, err = e.selectFallback(ks, opts)
	}
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(started)
	return res, nil
}

// planNative reports whether every field referenced by the where and
// order-by clauses is a projected column. Non-projected fields must at
// least be parseable paths; anything else surfaces ErrSchemaMismatch
// immediately.
func (e *Engine) planNative(ks types.KindSchema, opts types.SelectOptions) (bool, error) {
	native := true
	check := func(field string) error {
		if _, ok := ks.Projected(field); ok {
			return nil
		}
		native = false
		if _, err := e.paths.Get(field); err != nil {
			return fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
		}
		return nil
	}
	if opts.Where != nil {
		if err := walkFields(opts.Where, check); err != nil {
			return false, err
		}
	}
	for _, ob := range opts.OrderBy {
		if err := check(ob.Field); err != nil {
			return false, err
		}
	}
	return native, nil
}

func walkFields(expr types.Expr, fn func(field string) error) error {
	switch node := expr.(type) {
	case types.Cond:
		return fn(node.Field)
	case types.Junction:
		for _, arg := range node.Args {
			if err := walkFields(arg, fn); err != nil {
				return err
			}
		}
		return nil
	case types.Negation:
		return walkFields(node.Arg, fn)
	default:
		return fmt.Errorf("unsupported expression node %T", expr)
	}
}

// selectNative compiles the expression to parameterized SQL. Values only
// ever travel as placeholders; identifiers come from the registry.
func (e *Engine) selectNative(ks types.KindSchema, opts types.SelectOptions) (*types.SelectResult, error) {
	whereSQL, args, err := compileExpr(ks, opts.Where)
	if err != nil {
		return nil, err
	}
	clause := ""
	if whereSQL != "" {
		clause = " WHERE " + whereSQL
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", ks.Kind, clause)
	if err := e.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", ks.Kind, err)
	}

	orderSQL, err := orderClause(ks, opts.OrderBy)
	if err != nil {
		return nil, err
	}
	limit := -1
	if opts.Count > 0 {
		limit = opts.Count
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		colDoc, ks.Kind, clause, orderSQL, limit, opts.Start)

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", ks.Kind, err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", ks.Kind, err)
		}
		doc, err := types.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projected, err := e.projectRows(ks, docs, opts.Fields)
	if err != nil {
		return nil, err
	}
	return &types.SelectResult{Rows: projected, Total: total}, nil
}

// compileExpr translates a where-expression into SQL text plus args. A
// nil expression compiles to "".
func compileExpr(ks types.KindSchema, expr types.Expr) (string, []any, error) {
	if expr == nil {
		return "", nil, nil
	}
	switch node := expr.(type) {
	case types.Cond:
		sf, ok := ks.Projected(node.Field)
		if !ok {
			return "", nil, fmt.Errorf("%w: %q is not a projected column of %s",
				types.ErrSchemaMismatch, node.Field, ks.Kind)
		}
		switch node.Op {
		case types.OpEqual, types.OpNotEqual, types.OpLike, types.OpNotLike:
			return fmt.Sprintf("%s %s ?", sf.Name, node.Op), []any{bindValue(node.Value)}, nil
		case types.OpIn:
			values := inValues(node.Value)
			if len(values) == 0 {
				return "0", nil, nil
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = bindValue(v)
			}
			return fmt.Sprintf("%s IN (%s)", sf.Name, placeholders), args, nil
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", node.Op)
		}
	case types.Junction:
		if len(node.Args) == 0 {
			if node.Op == types.JunctionAnd {
				return "1", nil, nil
			}
			return "0", nil, nil
		}
		var parts []string
		var args []any
		for _, arg := range node.Args {
			sql, sub, err := compileExpr(ks, arg)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, sub...)
		}
		joiner := " AND "
		if node.Op == types.JunctionOr {
			joiner = " OR "
		}
		return strings.Join(parts, joiner), args, nil
	case types.Negation:
		sql, args, err := compileExpr(ks, node.Arg)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported expression node %T", expr)
	}
}

// bindValue normalizes expression values for the driver.
func bindValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

func inValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{vals}
	}
}

// tri is SQL three-valued logic. The fallback evaluator mirrors SQL
// semantics exactly — a comparison against a missing field is unknown,
// and unknown never matches — so the two paths return identical rows.
type tri int

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

func (t tri) not() tri {
	switch t {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	}
	return triUnknown
}

// evaluator evaluates where-expressions against decoded documents.
type evaluator struct {
	e     *Engine
	ks    types.KindSchema
	likes map[string]*regexp.Regexp
}

func (e *Engine) newEvaluator(ks types.KindSchema) *evaluator {
	return &evaluator{e: e, ks: ks, likes: make(map[string]*regexp.Regexp)}
}

// fieldValue extracts the comparison value for a field from a document.
// Projected fields go through the same scalar conversion used for their
// columns, so mixed queries agree with native execution; everything else
// resolves the raw document value.
func (ev *evaluator) fieldValue(doc types.Document, field string) (any, error) {
	if sf, ok := ev.ks.Projected(field); ok {
		r, err := ev.e.paths.Get(sf.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
		}
		v, ok := r(doc)
		if !ok {
			return nil, nil
		}
		return scalarValue(sf, v), nil
	}
	r, err := ev.e.paths.Get(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
	}
	v, ok := r(doc)
	if !ok {
		return nil, nil
	}
	return bindValue(v), nil
}

func (ev *evaluator) eval(doc types.Document, expr types.Expr) (tri, error) {
	switch node := expr.(type) {
	case types.Cond:
		return ev.evalCond(doc, node)
	case types.Junction:
		result := triTrue
		if node.Op == types.JunctionOr {
			result = triFalse
		}
		for _, arg := range node.Args {
			t, err := ev.eval(doc, arg)
			if err != nil {
				return triUnknown, err
			}
			switch node.Op {
			case types.JunctionAnd:
				if t == triFalse {
					return triFalse, nil
				}
				if t == triUnknown {
					result = triUnknown
				}
			case types.JunctionOr:
				if t == triTrue {
					return triTrue, nil
				}
				if t == triUnknown {
					result = triUnknown
				}
			}
		}
		return result, nil
	case types.Negation:
		t, err := ev.eval(doc, node.Arg)
		if err != nil {
			return triUnknown, err
		}
		return t.not(), nil
	default:
		return triUnknown, fmt.Errorf("unsupported expression node %T", expr)
	}
}

func (ev *evaluator) evalCond(doc types.Document, cond types.Cond) (tri, error) {
	// An empty IN list is constant false, independent of the field value;
	// the native path compiles it to a literal 0.
	if cond.Op == types.OpIn && len(inValues(cond.Value)) == 0 {
		return triFalse, nil
	}
	v, err := ev.fieldValue(doc, cond.Field)
	if err != nil {
		return triUnknown, err
	}
	if v == nil {
		return triUnknown, nil
	}
	switch cond.Op {
	case types.OpEqual, types.OpNotEqual:
		cmp, comparable := compareValues(v, bindValue(cond.Value))
		equal := comparable && cmp == 0
		if cond.Op == types.OpEqual {
			return boolTri(equal), nil
		}
		return boolTri(!equal), nil
	case types.OpLike, types.OpNotLike:
		pattern, ok := cond.Value.(string)
		if !ok {
			return triUnknown, fmt.Errorf("LIKE pattern must be a string, got %T", cond.Value)
		}
		s, ok := textValue(v)
		if !ok {
			return triUnknown, nil
		}
		re, err := ev.likePattern(pattern)
		if err != nil {
			return triUnknown, err
		}
		matched := re.MatchString(s)
		if cond.Op == types.OpLike {
			return boolTri(matched), nil
		}
		return boolTri(!matched), nil
	case types.OpIn:
		for _, candidate := range inValues(cond.Value) {
			cmp, comparable := compareValues(v, bindValue(candidate))
			if comparable && cmp == 0 {
				return triTrue, nil
			}
		}
		return triFalse, nil
	default:
		return triUnknown, fmt.Errorf("unsupported operator %q", cond.Op)
	}
}

func boolTri(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

// likePattern compiles a SQL LIKE pattern ("%" multi-char, "_" single)
// into an anchored case-insensitive regexp, cached per query.
func (ev *evaluator) likePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := ev.likes[pattern]; ok {
		return re, nil
	}
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling LIKE pattern %q: %w", pattern, err)
	}
	ev.likes[pattern] = re
	return re, nil
}

// compareValues orders two scalars the way SQLite does: numbers sort
// before text, values of the same class compare naturally, and values of
// different classes are ordered but never equal.
func compareValues(a, b any) (int, bool) {
	af, as, aClass := scalarClass(a)
	bf, bs, bClass := scalarClass(b)
	if aClass != bClass {
		if aClass < bClass {
			return -1, false
		}
		return 1, false
	}
	switch aClass {
	case classNumber:
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	case classText:
		return strings.Compare(as, bs), true
	}
	return 0, false
}

const (
	classOther = iota
	classNumber
	classText
)

func scalarClass(v any) (f float64, s string, class int) {
	switch val := v.(type) {
	case int:
		return float64(val), "", classNumber
	case int64:
		return float64(val), "", classNumber
	case float64:
		return val, "", classNumber
	case json.Number:
		if fv, err := val.Float64(); err == nil {
			return fv, "", classNumber
		}
		return 0, val.String(), classText
	case bool:
		if val {
			return 1, "", classNumber
		}
		return 0, "", classNumber
	case string:
		return 0, val, classText
	}
	return 0, "", classOther
}

// selectFallback decodes every row, filters and sorts in process, and
// windows last. Semantics match the native path exactly; the cost is the
// linear scan.
func (e *Engine) selectFallback(ks types.KindSchema, opts types.SelectOptions) (*types.SelectResult, error) {
	rows, err := e.db.Query(fmt.Sprintf("SELECT %s FROM %s", colDoc, ks.Kind))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", ks.Kind, err)
	}
	defer rows.Close()

	ev := e.newEvaluator(ks)
	type matched struct {
		doc  types.Document
		keys []any
	}
	var matches []matched
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", ks.Kind, err)
		}
		doc, err := types.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		if opts.Where != nil {
			t, err := ev.eval(doc, opts.Where)
			if err != nil {
				return nil, err
			}
			if t != triTrue {
				continue
			}
		}
		keys := make([]any, len(opts.OrderBy))
		for i, ob := range opts.OrderBy {
			v, err := ev.fieldValue(doc, ob.Field)
			if err != nil {
				return nil, err
			}
			keys[i] = v
		}
		matches = append(matches, matched{doc: doc, keys: keys})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable multi-key sort, each key with its own direction. NULLs sort
	// first ascending, matching the backing store.
	sort.SliceStable(matches, func(i, j int) bool {
		for k, ob := range opts.OrderBy {
			cmp := compareNullable(matches[i].keys[k], matches[j].keys[k])
			if cmp == 0 {
				continue
			}
			if ob.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	total := len(matches)
	start := opts.Start
	if start > total {
		start = total
	}
	end := total
	if opts.Count > 0 && start+opts.Count < total {
		end = start + opts.Count
	}

	docs := make([]types.Document, 0, end-start)
	for _, m := range matches[start:end] {
		docs = append(docs, m.doc)
	}
	projected, err := e.projectRows(ks, docs, opts.Fields)
	if err != nil {
		return nil, err
	}
	return &types.SelectResult{Rows: projected, Total: total}, nil
}

func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	cmp, _ := compareValues(a, b)
	return cmp
}

// projectRows reduces whole documents to the requested result fields.
// An empty field list returns the documents unchanged.
func (e *Engine) projectRows(ks types.KindSchema, docs []types.Document, fields []string) ([]types.Document, error) {
	if len(fields) == 0 {
		return docs, nil
	}
	out := make([]types.Document, len(docs))
	for i, doc := range docs {
		row := make(types.Document, len(fields))
		for _, field := range fields {
			path := field
			if sf, ok := ks.Projected(field); ok {
				path = sf.Path
			}
			r, err := e.paths.Get(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
			}
			if v, ok := r(doc); ok {
				row[field] = v
			}
		}
		out[i] = row
	}
	return out, nil
}

// Count returns the number of objects matching where; nil counts the
// whole kind. Execution follows the same native-or-fallback decision as
// Select.
func (e *Engine) Count(kind string, where types.Expr) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return 0, err
	}
	opts := types.SelectOptions{Where: where}
	native, err := e.planNative(ks, opts)
	if err != nil {
		return 0, err
	}
	if native {
		whereSQL, args, err := compileExpr(ks, where)
		if err != nil {
			return 0, err
		}
		clause := ""
		if whereSQL != "" {
			clause = " WHERE " + whereSQL
		}
		var total int
		if err := e.db.QueryRow(
			fmt.Sprintf("SELECT COUNT(*) FROM %s%s", ks.Kind, clause), args...).Scan(&total); err != nil {
			return 0, fmt.Errorf("counting %s: %w", kind, err)
		}
		return total, nil
	}
	res, err := e.selectFallback(ks, opts)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}
