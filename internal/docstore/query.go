package docstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Query selects documents with an expr-lang boolean expression evaluated
// against each document's top-level fields. $name placeholders resolve from
// Params, and references(id) is true when any "_ref" in the document equals
// id (or any of the ids when given a list).
//
//	_type == "media.tag" && name.current == $name
//	_type in ["sanity.fileAsset", "sanity.imageAsset"] && references($tagId)
type Query struct {
	Params  map[string]any
	Filter  string
	OrderBy string
	Desc    bool
}

// compiledQuery is a Query whose filter has been compiled.
type compiledQuery struct {
	program *vm.Program
	params  map[string]any
	orderBy string
	desc    bool
}

// queryCache caches compiled filter programs by source text.
type queryCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func newQueryCache() *queryCache {
	return &queryCache{programs: make(map[string]*vm.Program)}
}

func (c *queryCache) compile(q Query) (*compiledQuery, error) {
	filter := strings.TrimSpace(q.Filter)
	if filter == "" {
		filter = "true"
	}

	c.mu.RLock()
	program, ok := c.programs[filter]
	c.mu.RUnlock()

	if !ok {
		var err error
		program, err = exprlang.Compile(rewriteParams(filter),
			exprlang.Env(map[string]any{
				"params":     map[string]any{},
				"references": func(any) bool { return false },
			}),
			exprlang.AllowUndefinedVariables(),
		)
		if err != nil {
			return nil, ErrInvalidQuery.WithCause(fmt.Errorf("compile %q: %w", filter, err))
		}

		c.mu.Lock()
		c.programs[filter] = program
		c.mu.Unlock()
	}

	params := q.Params
	if params == nil {
		params = map[string]any{}
	}
	return &compiledQuery{program: program, params: params, orderBy: q.OrderBy, desc: q.Desc}, nil
}

// matches evaluates the filter against doc. Evaluation errors, such as
// member access on a missing field, count as no match.
func (q *compiledQuery) matches(doc Document) bool {
	if doc == nil {
		return false
	}

	env := make(map[string]any, len(doc)+2)
	for k, v := range doc {
		env[k] = v
	}
	env["params"] = q.params
	env["references"] = func(target any) bool {
		switch t := target.(type) {
		case string:
			return references(map[string]any(doc), t)
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && references(map[string]any(doc), s) {
					return true
				}
			}
		case []string:
			for _, s := range t {
				if references(map[string]any(doc), s) {
					return true
				}
			}
		}
		return false
	}

	out, err := exprlang.Run(q.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// sort orders docs in place by the query's OrderBy path. Input order is kept
// for equal keys.
func (q *compiledQuery) sort(docs []Document) {
	if q.orderBy == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i].Lookup(q.orderBy)
		b, _ := docs[j].Lookup(q.orderBy)
		c := compareValues(a, b)
		if q.desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders nil before numbers before strings; strings compare
// byte-wise.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

// rewriteParams turns $name into params.name outside string literals.
func rewriteParams(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 16)

	var quote rune
	escaped := false
	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch {
		case r == '"' || r == '\'' || r == '`':
			quote = r
			b.WriteRune(r)
		case r == '$' && i+1 < len(runes) && isIdentStart(runes[i+1]):
			b.WriteString("params.")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
