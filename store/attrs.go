package store

// attrSet is an insertion-ordered attribute map shared by groups, datasets
// and virtual datasets.
type attrSet struct {
	values map[string]any
	order  []string
}

func newAttrSet() *attrSet {
	return &attrSet{values: make(map[string]any)}
}

func (a *attrSet) set(key string, value any) {
	if _, ok := a.values[key]; !ok {
		a.order = append(a.order, key)
	}
	a.values[key] = coerceScalar(value)
}

func (a *attrSet) get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a *attrSet) keys() []string {
	keys := make([]string, len(a.order))
	copy(keys, a.order)

	return keys
}
