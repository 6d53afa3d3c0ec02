package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/pdfrange/core"
	"github.com/tsawler/pdfrange/internal/logging"
)

// XRef is the part of a cross-reference index the ObjectLoader needs.
// *core.XRef implements it.
type XRef interface {
	Stream() core.Source
	Fetch(ref core.IndirectRef, suppressEncryption bool) (core.Object, error)
}

// LoaderOption configures an ObjectLoader.
type LoaderOption func(*ObjectLoader)

// WithLoaderLogger sets the logger used to trace load rounds.
func WithLoaderLogger(log logrus.FieldLogger) LoaderOption {
	return func(l *ObjectLoader) {
		l.log = log
	}
}

// ObjectLoader makes every object reachable from a set of dictionary keys
// resident before it is used. It walks the object graph as far as the loaded
// bytes allow, collects the ranges it could not read, requests them in one
// batch and resumes from the nodes that were blocked.
//
// Walking from a key that leads back to the catalog or the page tree pulls
// in most of the document.
type ObjectLoader struct {
	dict   core.Dict
	keys   []string
	xref   XRef
	loader core.RangeLoader
	log    logrus.FieldLogger

	visited map[core.IndirectRef]struct{}
	rounds  int
}

// NewObjectLoader creates a loader for the values of keys in dict.
func NewObjectLoader(dict core.Dict, keys []string, xref XRef, loader core.RangeLoader, opts ...LoaderOption) *ObjectLoader {
	l := &ObjectLoader{
		dict:   dict,
		keys:   keys,
		xref:   xref,
		loader: loader,
		log:    logging.GetLogger("resolver"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rounds returns how many batched range requests the last Load made.
func (l *ObjectLoader) Rounds() int {
	return l.rounds
}

// Load returns once every object reachable from the configured keys can be
// fetched without missing data.
func (l *ObjectLoader) Load(ctx context.Context) error {
	l.rounds = 0
	src, ok := l.xref.Stream().(core.ChunkedSource)
	if !ok || len(src.MissingChunks()) == 0 {
		return nil
	}

	l.visited = make(map[core.IndirectRef]struct{})
	defer func() { l.visited = nil }()

	var nodes []core.Object
	for _, key := range l.keys {
		if v := l.dict.Get(key); v != nil {
			nodes = append(nodes, v)
		}
	}

	for {
		revisit, pending, err := l.walk(nodes)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		l.rounds++
		l.log.WithFields(logrus.Fields{
			"round":  l.rounds,
			"ranges": len(pending),
		}).Debug("loading object graph ranges")
		if err := l.loader.LoadRanges(ctx, pending); err != nil {
			return err
		}

		for _, node := range revisit {
			if ref, ok := node.(core.IndirectRef); ok {
				delete(l.visited, ref)
			}
		}
		nodes = revisit
	}
}

// walk visits nodes depth first and returns the nodes that hit missing data
// together with the ranges they need.
func (l *ObjectLoader) walk(nodes []core.Object) ([]core.Object, []core.Range, error) {
	var revisit []core.Object
	var pending []core.Range

	stack := make([]core.Object, len(nodes))
	copy(stack, nodes)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if ref, ok := node.(core.IndirectRef); ok {
			if _, seen := l.visited[ref]; seen {
				continue
			}
			l.visited[ref] = struct{}{}

			obj, err := l.xref.Fetch(ref, false)
			if err != nil {
				m, missing := core.IsMissingData(err)
				if !missing {
					return nil, nil, fmt.Errorf("failed to load %s: %w", ref, err)
				}
				revisit = append(revisit, ref)
				pending = append(pending, m.Range())
				continue
			}
			node = obj
		}

		if s, ok := node.(*core.Stream); ok {
			if src, ok := s.Source().(core.ChunkedSource); ok && len(src.MissingChunks()) > 0 {
				revisit = append(revisit, s)
				pending = append(pending, core.Range{Begin: src.Start(), End: src.End()})
			}
		}

		stack = appendChildren(stack, node)
	}
	return revisit, pending, nil
}

func mayHaveChildren(obj core.Object) bool {
	switch obj.(type) {
	case core.IndirectRef, core.Dict, core.Array, *core.Stream:
		return true
	}
	return false
}

// appendChildren pushes the composite values of node in key order.
func appendChildren(stack []core.Object, node core.Object) []core.Object {
	var dict core.Dict
	switch v := node.(type) {
	case core.Dict:
		dict = v
	case *core.Stream:
		dict = v.Dict
	case core.Array:
		for _, elem := range v {
			if mayHaveChildren(elem) {
				stack = append(stack, elem)
			}
		}
		return stack
	default:
		return stack
	}
	for _, key := range dict.Keys() {
		if value := dict[key]; mayHaveChildren(value) {
			stack = append(stack, value)
		}
	}
	return stack
}
