package pages

import (
	"context"
	"fmt"

	"github.com/tsawler/pdfrange/core"
)

// maxInheritDepth bounds the /Parent chain followed for inheritable
// attributes.
const maxInheritDepth = 100

// resourceKeys are the resource categories a page needs before its content
// can be interpreted.
var resourceKeys = []string{"ExtGState", "ColorSpace", "Pattern", "Shading", "XObject", "Font"}

// Resolver resolves indirect references, loading missing data as needed.
// *reader.Reader implements it.
type Resolver interface {
	Resolve(ctx context.Context, obj core.Object) (core.Object, error)
}

// Loader makes the subgraph below selected keys of a dictionary resident.
// *reader.Reader implements it.
type Loader interface {
	LoadObjects(ctx context.Context, dict core.Dict, keys ...string) error
}

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver Resolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver Resolver) *Catalog {
	return &Catalog{
		dict:     dict,
		resolver: resolver,
	}
}

// Type returns the catalog type (should be "Catalog")
func (c *Catalog) Type() string {
	if name, ok := c.dict.GetName("Type"); ok {
		return string(name)
	}
	return ""
}

// Version returns the version entry if present
func (c *Catalog) Version() string {
	if name, ok := c.dict.GetName("Version"); ok {
		return string(name)
	}
	return ""
}

// Pages returns the page tree root
func (c *Catalog) Pages(ctx context.Context) (core.Dict, error) {
	pagesRef := c.dict.Get("Pages")
	if pagesRef == nil {
		return nil, fmt.Errorf("catalog missing /Pages entry")
	}

	pagesObj, err := c.resolver.Resolve(ctx, pagesRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}

	pagesDict, ok := pagesObj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid /Pages type: %T", pagesObj)
	}

	return pagesDict, nil
}

// PageTree returns the page tree rooted at /Pages
func (c *Catalog) PageTree(ctx context.Context) (*PageTree, error) {
	root, err := c.Pages(ctx)
	if err != nil {
		return nil, err
	}
	return NewPageTree(root, c.resolver), nil
}

// PageTree locates pages by index. Subtrees whose /Count shows they end
// before the requested page are skipped without being fetched.
type PageTree struct {
	root     core.Dict
	resolver Resolver
	pages    map[int]*Page
}

// NewPageTree creates a new page tree from the root pages dictionary
func NewPageTree(root core.Dict, resolver Resolver) *PageTree {
	return &PageTree{
		root:     root,
		resolver: resolver,
		pages:    make(map[int]*Page),
	}
}

// Count returns the total number of pages
func (t *PageTree) Count() (int, error) {
	count, ok := t.root.GetInt("Count")
	if !ok {
		return 0, fmt.Errorf("page tree missing /Count entry")
	}
	return int(count), nil
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(ctx context.Context, index int) (*Page, error) {
	if p, ok := t.pages[index]; ok {
		return p, nil
	}
	if count, err := t.Count(); err == nil && (index < 0 || index >= count) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, count)
	}

	type node struct {
		obj  core.Object
		ref  core.IndirectRef
		root bool
	}
	stack := []node{{obj: t.root, root: true}}
	visited := make(map[core.IndirectRef]struct{})
	current := 0

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if ref, ok := n.obj.(core.IndirectRef); ok {
			if _, seen := visited[ref]; seen {
				return nil, fmt.Errorf("page tree contains a cycle at %s", ref)
			}
			visited[ref] = struct{}{}
			obj, err := t.resolver.Resolve(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve page node %s: %w", ref, err)
			}
			n = node{obj: obj, ref: ref}
		}

		dict, ok := n.obj.(core.Dict)
		if !ok {
			return nil, fmt.Errorf("invalid page node type: %T", n.obj)
		}

		typeName, _ := dict.GetName("Type")
		if typeName == "Page" || (typeName == "" && !dict.Has("Kids")) {
			if current == index {
				p := &Page{Index: index, Ref: n.ref, dict: dict, resolver: t.resolver}
				t.pages[index] = p
				return p, nil
			}
			current++
			continue
		}
		if typeName != "Pages" && typeName != "" {
			return nil, fmt.Errorf("unexpected page node type: %s", typeName)
		}

		// Skip the whole subtree when it ends before index.
		if count, ok := dict.GetInt("Count"); ok && !n.root {
			if current+int(count) <= index {
				current += int(count)
				continue
			}
		}

		kidsObj, err := t.resolver.Resolve(ctx, dict.Get("Kids"))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve /Kids: %w", err)
		}
		kids, ok := kidsObj.(core.Array)
		if !ok {
			return nil, fmt.Errorf("invalid /Kids type: %T", kidsObj)
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, node{obj: kids[i]})
		}
	}

	return nil, fmt.Errorf("page index %d not found in page tree", index)
}

// Pages returns all pages as a slice
func (t *PageTree) Pages(ctx context.Context) ([]*Page, error) {
	count, err := t.Count()
	if err != nil {
		return nil, err
	}
	pages := make([]*Page, 0, count)
	for i := 0; i < count; i++ {
		p, err := t.GetPage(ctx, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Page represents a single PDF page
type Page struct {
	// Index is the 0-based page number.
	Index int
	// Ref is the page object's reference, or the zero value when the page
	// dictionary was direct.
	Ref core.IndirectRef

	dict     core.Dict
	resolver Resolver
}

// NewPage creates a new page from a dictionary
func NewPage(dict core.Dict, resolver Resolver) *Page {
	return &Page{
		dict:     dict,
		resolver: resolver,
	}
}

// Dict returns the page dictionary
func (p *Page) Dict() core.Dict {
	return p.dict
}

// inherited looks key up on the page and then along its /Parent chain.
func (p *Page) inherited(ctx context.Context, key string) (core.Object, error) {
	dict := p.dict
	for depth := 0; depth < maxInheritDepth; depth++ {
		if v := dict.Get(key); v != nil {
			return p.resolver.Resolve(ctx, v)
		}
		parentRef := dict.Get("Parent")
		if parentRef == nil {
			return nil, nil
		}
		parent, err := p.resolver.Resolve(ctx, parentRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve /Parent: %w", err)
		}
		if dict, _ = parent.(core.Dict); dict == nil {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("/Parent chain deeper than %d", maxInheritDepth)
}

// MediaBox returns the page media box [x1 y1 x2 y2]
// This is inheritable, so checks parent if not present
func (p *Page) MediaBox(ctx context.Context) ([]float64, error) {
	return p.getBox(ctx, "MediaBox")
}

// CropBox returns the page crop box [x1 y1 x2 y2]
// This is inheritable, defaults to MediaBox if not present
func (p *Page) CropBox(ctx context.Context) ([]float64, error) {
	box, err := p.getBox(ctx, "CropBox")
	if err != nil {
		return p.MediaBox(ctx)
	}
	return box, nil
}

// getBox retrieves a box attribute (inheritable)
func (p *Page) getBox(ctx context.Context, name string) ([]float64, error) {
	boxObj, err := p.inherited(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if boxObj == nil {
		return nil, fmt.Errorf("%s not found", name)
	}

	boxArr, ok := boxObj.(core.Array)
	if !ok {
		return nil, fmt.Errorf("invalid %s type: %T", name, boxObj)
	}
	if len(boxArr) != 4 {
		return nil, fmt.Errorf("invalid %s length: %d (expected 4)", name, len(boxArr))
	}

	box := make([]float64, 4)
	for i, elem := range boxArr {
		switch v := elem.(type) {
		case core.Int:
			box[i] = float64(v)
		case core.Real:
			box[i] = float64(v)
		default:
			return nil, fmt.Errorf("invalid %s element type: %T", name, elem)
		}
	}

	return box, nil
}

// Resources returns the page resources dictionary
// This is inheritable
func (p *Page) Resources(ctx context.Context) (core.Dict, error) {
	resourcesObj, err := p.inherited(ctx, "Resources")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	if resourcesObj == nil {
		return nil, fmt.Errorf("resources not found")
	}

	resourcesDict, ok := resourcesObj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid Resources type: %T", resourcesObj)
	}

	return resourcesDict, nil
}

// LoadResources makes everything reachable from the page's resource
// categories resident, so that interpreting the page never waits on the
// network. A page without resources has nothing to load.
func (p *Page) LoadResources(ctx context.Context, loader Loader) error {
	obj, err := p.inherited(ctx, "Resources")
	if err != nil {
		return fmt.Errorf("failed to resolve Resources: %w", err)
	}
	res, ok := obj.(core.Dict)
	if !ok {
		return nil
	}
	return loader.LoadObjects(ctx, res, resourceKeys...)
}

// LoadContents makes the page's content streams resident
func (p *Page) LoadContents(ctx context.Context, loader Loader) error {
	return loader.LoadObjects(ctx, p.dict, "Contents")
}

// Contents returns the page content stream(s)
func (p *Page) Contents(ctx context.Context) ([]core.Object, error) {
	contentsObj := p.dict.Get("Contents")
	if contentsObj == nil {
		return nil, nil // Contents is optional
	}

	contentsResolved, err := p.resolver.Resolve(ctx, contentsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	// Contents can be a single stream or array of streams
	switch v := contentsResolved.(type) {
	case *core.Stream:
		return []core.Object{v}, nil
	case core.Array:
		streams := make([]core.Object, len(v))
		for i, elem := range v {
			resolved, err := p.resolver.Resolve(ctx, elem)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			streams[i] = resolved
		}
		return streams, nil
	default:
		return nil, fmt.Errorf("invalid Contents type: %T", contentsResolved)
	}
}

// Rotate returns the page rotation normalized to 0, 90, 180 or 270.
// This is inheritable
func (p *Page) Rotate(ctx context.Context) int {
	obj, err := p.inherited(ctx, "Rotate")
	if err != nil {
		return 0
	}
	rotate, ok := obj.(core.Int)
	if !ok || rotate%90 != 0 {
		return 0
	}
	r := int(rotate) % 360
	if r < 0 {
		r += 360
	}
	return r
}

// Width returns the page width (from MediaBox)
func (p *Page) Width(ctx context.Context) (float64, error) {
	box, err := p.MediaBox(ctx)
	if err != nil {
		return 0, err
	}
	return box[2] - box[0], nil
}

// Height returns the page height (from MediaBox)
func (p *Page) Height(ctx context.Context) (float64, error) {
	box, err := p.MediaBox(ctx)
	if err != nil {
		return 0, err
	}
	return box[3] - box[1], nil
}
