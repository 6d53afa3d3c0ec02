package resolver

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/pdfrange/chunked"
	"github.com/tsawler/pdfrange/core"
)

// buildPDF writes objects numbered 1..len(bodies) in the given order with a
// classic xref table and returns the file and its startxref offset.
func buildPDF(bodies map[int]string, order []int) ([]byte, int64) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int, len(order))
	for _, num := range order {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, bodies[num])
	}

	startxref := int64(buf.Len())
	size := len(order) + 1
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for num := 1; num < size; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, startxref)
	return buf.Bytes(), startxref
}

type countingLoader struct {
	m     *chunked.Manager
	calls int
}

func (c *countingLoader) LoadRange(ctx context.Context, begin, end int64) error {
	c.calls++
	return c.m.LoadRange(ctx, begin, end)
}

func (c *countingLoader) LoadRanges(ctx context.Context, ranges []core.Range) error {
	c.calls++
	return c.m.LoadRanges(ctx, ranges)
}

// openChunked parses the xref of data over an empty chunk store, loading
// only what parsing needs.
func openChunked(t *testing.T, data []byte, startxref int64) (*core.XRef, *chunked.Stream, *countingLoader) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	stream := chunked.NewStream(int64(len(data)), 16)
	fetch := chunked.FetcherFunc(func(_ context.Context, begin, end int64) ([]byte, error) {
		return data[begin:end], nil
	})
	m := chunked.NewManager(stream, fetch, chunked.WithReadAhead(nil))
	t.Cleanup(m.Abort)
	loader := &countingLoader{m: m}

	x := core.NewXRef(stream, loader)
	x.SetStartXRef(startxref)
	for {
		err := x.Parse(false)
		missing, ok := core.IsMissingData(err)
		if !ok {
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			break
		}
		if err := m.LoadRange(ctx, missing.Begin, missing.End); err != nil {
			t.Fatalf("LoadRange() error = %v", err)
		}
	}
	loader.calls = 0
	return x, stream, loader
}

func samplePDF() ([]byte, int64) {
	pad := "(" + strings.Repeat("x", 160) + ")"
	body := strings.Repeat("0123456789", 12)
	bodies := map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R /Outlines 7 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		3: "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		4: fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(body), body),
		5: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		6: pad,
		7: "<< /Type /Outlines /Count 0 /Pad 8 0 R >>",
		8: pad,
	}
	return buildPDF(bodies, []int{1, 6, 2, 3, 4, 8, 5, 7})
}

// TestObjectLoaderLoad tests that a walk makes every reachable object resident.
func TestObjectLoaderLoad(t *testing.T) {
	data, startxref := samplePDF()
	x, stream, counter := openChunked(t, data, startxref)

	catalog := x.GetCatalogObj()
	loader := NewObjectLoader(catalog, []string{"Pages"}, x, counter)
	ctx := context.Background()
	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loader.Rounds() == 0 {
		t.Error("Rounds() = 0, expected at least one batched request")
	}
	if counter.calls != loader.Rounds() {
		t.Errorf("loader calls = %d, want one per round (%d)", counter.calls, loader.Rounds())
	}

	for _, num := range []int{2, 3, 4, 5} {
		obj, err := x.Fetch(core.IndirectRef{Number: num}, false)
		if err != nil {
			t.Fatalf("Fetch(%d) after Load: %v", num, err)
		}
		if s, ok := obj.(*core.Stream); ok {
			raw, err := s.RawBytes()
			if err != nil {
				t.Fatalf("RawBytes() after Load: %v", err)
			}
			if !strings.HasPrefix(string(raw), "0123456789") {
				t.Errorf("stream body = %q", raw)
			}
		}
	}

	// The outline branch was not requested.
	if _, err := x.Fetch(core.IndirectRef{Number: 8}, false); err == nil {
		t.Error("Fetch(8) succeeded, expected the unrequested branch to be missing")
	}
	if len(stream.MissingChunks()) == 0 {
		t.Error("whole document loaded, expected only the requested graph")
	}

	// A second walk over resident data needs no requests.
	if err := loader.Load(ctx); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if loader.Rounds() != 0 {
		t.Errorf("second Load() rounds = %d, want 0", loader.Rounds())
	}
}

// countingXRef records, per object number, how many fetches succeeded and
// how many were deferred on missing data.
type countingXRef struct {
	*core.XRef
	fetched  map[int]int
	deferred map[int]int
}

func (c *countingXRef) Fetch(ref core.IndirectRef, suppressEncryption bool) (core.Object, error) {
	obj, err := c.XRef.Fetch(ref, suppressEncryption)
	if _, missing := core.IsMissingData(err); missing {
		c.deferred[ref.Number]++
	} else if err == nil {
		c.fetched[ref.Number]++
	}
	return obj, err
}

// cyclePDF links objects 2..n+1 in a ring below the catalog. Each node also
// points at itself and the last one points back at the catalog.
func cyclePDF(n int) ([]byte, int64) {
	pad := strings.Repeat("x", 40)
	bodies := map[int]string{1: "<< /Type /Catalog /A 2 0 R >>"}
	order := []int{1}
	for num := 2; num <= n+1; num++ {
		next := num + 1
		back := ""
		if num == n+1 {
			next = 2
			back = " /Back 1 0 R"
		}
		bodies[num] = fmt.Sprintf("<< /Next %d 0 R /Self %d 0 R%s /Pad (%s) >>", next, num, back, pad)
		order = append(order, num)
	}
	return buildPDF(bodies, order)
}

// TestObjectLoaderCycle tests that every object on a reference cycle is
// fetched exactly once, whatever the cycle length.
func TestObjectLoaderCycle(t *testing.T) {
	for _, n := range []int{1, 2, 10, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			data, startxref := cyclePDF(n)
			x, stream, counter := openChunked(t, data, startxref)
			if len(stream.MissingChunks()) == 0 {
				t.Fatal("document fully loaded before the walk")
			}
			xref := &countingXRef{XRef: x, fetched: map[int]int{}, deferred: map[int]int{}}

			loader := NewObjectLoader(x.GetCatalogObj(), []string{"A"}, xref, counter)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := loader.Load(ctx); err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			for num := 1; num <= n+1; num++ {
				if got := xref.fetched[num]; got != 1 {
					t.Errorf("object %d fetched %d times, want 1 (deferred %d)", num, got, xref.deferred[num])
				}
			}
			if len(xref.fetched) != n+1 {
				t.Errorf("fetched %d distinct objects, want %d", len(xref.fetched), n+1)
			}
			if counter.calls != loader.Rounds() {
				t.Errorf("loader calls = %d, want one per round (%d)", counter.calls, loader.Rounds())
			}
		})
	}
}

// TestObjectLoaderResident tests that a fully resident source needs no walk.
func TestObjectLoaderResident(t *testing.T) {
	data, startxref := samplePDF()
	x := core.NewXRef(core.NewMemorySource(data), nil)
	x.SetStartXRef(startxref)
	if err := x.Parse(false); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	loader := NewObjectLoader(x.GetCatalogObj(), []string{"Pages", "Outlines"}, x, nil)
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loader.Rounds() != 0 {
		t.Errorf("Rounds() = %d, want 0", loader.Rounds())
	}
}

// TestObjectLoaderBadObject tests that a malformed object aborts the walk.
func TestObjectLoaderBadObject(t *testing.T) {
	bodies := map[int]string{
		1: "<< /Type /Catalog /A 2 0 R >>",
		2: "<< /Broken ] >>",
		3: "(" + strings.Repeat("x", 160) + ")",
	}
	data, startxref := buildPDF(bodies, []int{1, 2, 3})
	x, _, counter := openChunked(t, data, startxref)

	loader := NewObjectLoader(x.GetCatalogObj(), []string{"A"}, x, counter)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loader.Load(ctx); err == nil {
		t.Error("Load() succeeded, expected an error for the malformed object")
	}
}
