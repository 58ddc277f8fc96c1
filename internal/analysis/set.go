package analysis

import "sort"

// Set is a set of taste labels.
type Set map[string]struct{}

func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, i := range items {
		if i != "" {
			s[i] = struct{}{}
		}
	}
	return s
}

func (s Set) Add(items ...string) {
	for _, i := range items {
		if i != "" {
			s[i] = struct{}{}
		}
	}
}

func (s Set) AddAll(o Set) {
	for k := range o {
		s[k] = struct{}{}
	}
}

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	out.AddAll(s)
	out.AddAll(o)
	return out
}

func (s Set) Intersect(o Set) Set {
	out := Set{}
	for k := range s {
		if o.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Minus returns the items of s that are not in o.
func (s Set) Minus(o Set) Set {
	out := Set{}
	for k := range s {
		if !o.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the items in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
