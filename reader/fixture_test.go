package reader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tsawler/pdfrange/core"
)

// document writes bodies as objects 1..n, in order, followed by a classic
// xref table. When length is positive an unreferenced filler string object
// is appended so the file is exactly length bytes long.
func document(bodies []string, trailer string, length int) []byte {
	build := func(filler int) []byte {
		objs := bodies
		if filler >= 0 {
			objs = append(append([]string(nil), bodies...), "("+strings.Repeat("x", filler)+")")
		}

		var buf bytes.Buffer
		buf.WriteString("%PDF-1.7\n")
		offsets := make([]int, len(objs))
		for i, body := range objs {
			offsets[i] = buf.Len()
			fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
		}

		startxref := buf.Len()
		fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
		for _, off := range offsets {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		}
		fmt.Fprintf(&buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, trailer, startxref)
		return buf.Bytes()
	}

	if length <= 0 {
		return build(-1)
	}
	// The startxref digits grow with the filler, so converge in a few passes.
	filler := 0
	data := build(filler)
	for i := 0; i < 3 && len(data) != length; i++ {
		filler += length - len(data)
		data = build(filler)
	}
	return data
}

// onePage is a single page document with an info dictionary.
func onePage(infoTitle string) []string {
	content := "BT /F1 12 Tf 72 712 Td (Hello) Tj ET"
	return []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Title %s /Author (Test Author) /Trapped /False >>", infoTitle),
	}
}

const onePageTrailer = "/Root 1 0 R /Info 6 0 R /ID [<abcd> <abcd>]"

// rangeFetcher serves byte ranges of data and records each request.
type rangeFetcher struct {
	data []byte

	mu    sync.Mutex
	calls []core.Range
}

func (f *rangeFetcher) FetchRange(_ context.Context, begin, end int64) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, core.Range{Begin: begin, End: end})
	f.mu.Unlock()
	return f.data[begin:end], nil
}

func (f *rangeFetcher) recorded() []core.Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Range(nil), f.calls...)
}

// touches reports whether any recorded request overlaps [begin, end).
func (f *rangeFetcher) touches(begin, end int64) bool {
	for _, r := range f.recorded() {
		if r.Begin < end && begin < r.End {
			return true
		}
	}
	return false
}
