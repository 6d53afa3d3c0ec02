// Package reader opens a PDF document session over a resident buffer or a
// range-fetched network source.
//
// # Opening Documents
//
// Use [Open] or [NewReader] for a document that is already in memory:
//
//	r, err := reader.Open("document.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
// Use [NewNetwork] when the bytes live behind a range-capable transport. Only
// the header and the cross-reference chain are fetched up front:
//
//	r, err := reader.NewNetwork(ctx, fetcher, length,
//	    reader.WithChunkSize(64*1024),
//	    reader.WithDisableAutoFetch())
//
// A broken cross-reference chain triggers recovery: the whole document is
// loaded and every object is indexed by scanning.
//
// # Missing Data
//
// Parsing a network document fails with *core.MissingDataError whenever it
// touches bytes that have not arrived. [Reader.Ensure] loads the missing
// range and retries:
//
//	err := r.Ensure(ctx, func() error {
//	    obj, err = r.XRef().Fetch(ref, false)
//	    return err
//	})
//
// [Reader.Fetch], [Reader.Resolve] and [Reader.Info] do this for you.
//
// # Loading Subgraphs
//
// [Reader.LoadObjects] makes everything reachable from selected keys of a
// dictionary resident in as few round trips as possible. [Reader.LoadAll]
// fetches the rest of the document.
package reader
