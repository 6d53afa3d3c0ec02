// Package resolver walks and resolves the PDF object graph.
//
// PDF documents use indirect references (e.g., "5 0 R") to refer to objects
// stored elsewhere in the file. This package provides two tools over them.
//
// # Graph Loading
//
// An [ObjectLoader] makes a subgraph resident before it is used. It starts
// from selected keys of a dictionary, fetches every object it can reach
// through the cross-reference index, and batches the byte ranges it could not
// read into a single request per round:
//
//	loader := resolver.NewObjectLoader(catalog, []string{"Pages"}, xref, manager)
//	if err := loader.Load(ctx); err != nil {
//	    return err
//	}
//
// Each reference is visited once per round, so cycles terminate. When the
// document is already resident Load returns immediately.
//
// # Resolution
//
// An [ObjectResolver] follows references over any [Fetcher]:
//
//	r := resolver.NewResolver(xref)
//	obj, err := r.Resolve(ref)
//
// For complete expansion of nested references in dictionaries and arrays:
//
//	resolved, err := r.ResolveDeep(obj)
//
// Circular references are reported as errors. The maximum recursion depth
// is configurable:
//
//	r := resolver.NewResolver(xref, resolver.WithMaxDepth(50))
package resolver
