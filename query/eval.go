package query

// Lookup resolves p against doc. The second result is false when any
// segment is undefined or traverses a non-object.
func Lookup(doc map[string]any, p Path) (any, bool) {
	var cur any = doc
	for _, seg := range p {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether doc satisfies the WHERE clause. Comparisons
// against undefined properties or values of another type are false.
func (q *Query) Matches(doc map[string]any) bool {
	if q.Where == nil {
		return true
	}
	return eval(q.Where, doc)
}

func eval(e Expr, doc map[string]any) bool {
	switch e := e.(type) {
	case Comparison:
		v, ok := Lookup(doc, e.Path)
		if !ok {
			return false
		}
		return compare(v, e.Op, e.Value)
	case Logical:
		if e.And {
			return eval(e.Left, doc) && eval(e.Right, doc)
		}
		return eval(e.Left, doc) || eval(e.Right, doc)
	case Not:
		return !eval(e.Expr, doc)
	default:
		return false
	}
}

func compare(v any, op Op, lit any) bool {
	switch l := lit.(type) {
	case nil:
		switch op {
		case OpEq:
			return v == nil
		case OpNe:
			return v != nil
		}
		return false
	case bool:
		b, ok := v.(bool)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return b == l
		case OpNe:
			return b != l
		}
		return false
	case float64:
		n, ok := toFloat(v)
		if !ok {
			return false
		}
		return ordered(n, op, l)
	case string:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return ordered(s, op, l)
	}
	return false
}

func ordered[T float64 | string](a T, op Op, b T) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Project applies the selection to doc. SELECT * returns doc itself.
// SELECT VALUE returns the bare value and false when it is undefined, in
// which case the row is omitted. Path lists produce an object keyed by
// each path's last segment, skipping undefined properties.
func (q *Query) Project(doc map[string]any) (any, bool) {
	switch {
	case q.Select.Star:
		return doc, true
	case q.Select.Value:
		return Lookup(doc, q.Select.Paths[0])
	}
	out := make(map[string]any, len(q.Select.Paths))
	for _, p := range q.Select.Paths {
		if v, ok := Lookup(doc, p); ok {
			out[p[len(p)-1]] = v
		}
	}
	return out, true
}
