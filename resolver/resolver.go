package resolver

import (
	"fmt"

	"github.com/tsawler/pdfrange/core"
)

// ObjectResolver resolves indirect references in PDF objects
// It can recursively resolve references in dictionaries and arrays
type ObjectResolver struct {
	fetcher      Fetcher
	visited      map[core.IndirectRef]bool // Cycle detection
	maxDepth     int                       // Maximum recursion depth
	currentDepth int                       // Current recursion depth
}

// Fetcher returns the object an indirect reference points to.
// *core.XRef implements it.
type Fetcher interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ref core.IndirectRef) (core.Object, error)

func (f FetcherFunc) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return f(ref)
}

// Option configures the resolver
type Option func(*ObjectResolver)

// WithMaxDepth sets the maximum recursion depth (default: 100)
func WithMaxDepth(depth int) Option {
	return func(r *ObjectResolver) {
		r.maxDepth = depth
	}
}

// NewResolver creates a new object resolver
func NewResolver(fetcher Fetcher, opts ...Option) *ObjectResolver {
	r := &ObjectResolver{
		fetcher:  fetcher,
		visited:  make(map[core.IndirectRef]bool),
		maxDepth: 100,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve follows obj if it is an indirect reference. Nested references are
// left as they are.
func (r *ObjectResolver) Resolve(obj core.Object) (core.Object, error) {
	return r.resolve(obj, false)
}

// ResolveDeep recursively resolves all indirect references in dictionaries,
// arrays and stream dictionaries.
func (r *ObjectResolver) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.resolve(obj, true)
}

func (r *ObjectResolver) resolve(obj core.Object, deep bool) (core.Object, error) {
	// A fresh top-level call starts with an empty path.
	if r.currentDepth == 0 {
		r.visited = make(map[core.IndirectRef]bool)
	}

	if r.currentDepth >= r.maxDepth {
		return nil, fmt.Errorf("maximum recursion depth (%d) exceeded", r.maxDepth)
	}

	switch v := obj.(type) {
	case core.IndirectRef:
		if r.visited[v] {
			return nil, fmt.Errorf("circular reference detected for object %s", v)
		}

		// Marked only along the current path so shared objects resolve in every branch.
		r.visited[v] = true
		defer delete(r.visited, v)

		resolved, err := r.fetcher.ResolveReference(v)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reference %s: %w", v, err)
		}

		if deep {
			r.currentDepth++
			resolved, err = r.resolve(resolved, deep)
			r.currentDepth--
			if err != nil {
				return nil, err
			}
		}

		return resolved, nil

	case core.Dict:
		if !deep {
			return v, nil
		}

		resolved := make(core.Dict, len(v))
		for key, value := range v {
			r.currentDepth++
			resolvedValue, err := r.resolve(value, deep)
			r.currentDepth--
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dict key %s: %w", key, err)
			}
			resolved[key] = resolvedValue
		}
		return resolved, nil

	case core.Array:
		if !deep {
			return v, nil
		}

		resolved := make(core.Array, len(v))
		for i, elem := range v {
			r.currentDepth++
			resolvedElem, err := r.resolve(elem, deep)
			r.currentDepth--
			if err != nil {
				return nil, fmt.Errorf("failed to resolve array element %d: %w", i, err)
			}
			resolved[i] = resolvedElem
		}
		return resolved, nil

	case *core.Stream:
		if !deep {
			return v, nil
		}

		r.currentDepth++
		resolvedDict, err := r.resolve(v.Dict, deep)
		r.currentDepth--
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stream dict: %w", err)
		}

		return v.WithDict(resolvedDict.(core.Dict)), nil

	default:
		return obj, nil
	}
}

// Reset clears the visited map and depth counter
// Call this between independent resolution operations
func (r *ObjectResolver) Reset() {
	r.visited = make(map[core.IndirectRef]bool)
	r.currentDepth = 0
}

// ResolveReferenceDeep resolves a reference and all nested references
func (r *ObjectResolver) ResolveReferenceDeep(ref core.IndirectRef) (core.Object, error) {
	defer r.Reset()
	return r.ResolveDeep(ref)
}
