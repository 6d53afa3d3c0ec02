// Package pages locates pages in the page tree of a progressively loaded
// document.
//
// # Page Tree
//
// PDF documents organize pages in a tree whose intermediate nodes carry a
// /Count of the pages below them. [PageTree] uses those counts to walk
// straight to the requested page, so only the nodes on its path are
// fetched:
//
//	tree, err := pages.NewCatalog(catalog, r).PageTree(ctx)
//	page, err := tree.GetPage(ctx, 41) // 0-indexed
//
// # Page Access
//
// The [Page] type represents a single PDF page with:
//
//   - MediaBox - page dimensions
//   - CropBox - visible area (defaults to MediaBox)
//   - Rotate - page rotation (0, 90, 180, 270)
//   - Resources - fonts, images, etc.
//   - Contents - content streams
//
// MediaBox, CropBox, Resources and Rotate are inherited through /Parent.
//
// # Loading
//
// Before a page is handed to an interpreter, its resources and content
// streams can be made resident in a few batched round trips:
//
//	if err := page.LoadResources(ctx, r); err != nil {
//	    return err
//	}
//
// [Resolver] and [Loader] are both satisfied by *reader.Reader.
package pages
