package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/pdfrange/internal/logging"
)

// pdfWithInfo is a PDF with an Info dictionary
const pdfWithInfo = `%PDF-1.7
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
3 0 obj
<< /Title (Test Document) /Author (Test Author) >>
endobj
xref
0 4
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
0000000110 00000 n
trailer
<< /Size 4 /Root 1 0 R /Info 3 0 R >>
startxref
176
%%EOF`

func testServer(t *testing.T) (string, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test.pdf"), []byte(pdfWithInfo), 0644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newRouter(dir, logging.GetLogger("test")))
	t.Cleanup(srv.Close)
	return dir, srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"pdfrange"}, args...))
	return out.String(), err
}

// TestCommands tests the document commands end to end
func TestCommands(t *testing.T) {
	dir, srv := testServer(t)
	url := srv.URL + "/test.pdf"
	path := filepath.Join(dir, "test.pdf")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"info http", []string{"info", url}, []string{"Version:  1.7", "Objects:  ", "Title: Test Document", "Author: Test Author", "Chunks:"}},
		{"info file", []string{"info", "--chunk-size", "64", path}, []string{"Length:   ", "Title: Test Document"}},
		{"object", []string{"object", "--no-read-ahead", url, "3"}, []string{"3 0 R = ", "Test Document"}},
		{"object deep", []string{"object", "--deep", url, "2", "0"}, []string{"2 0 R = ", "/Count 0"}},
		{"load all", []string{"load", "--chunk-size", "100", url}, []string{"loaded 4 of 4 chunks"}},
		{"load key", []string{"load", "--key", "Pages", path}, []string{"loaded 1 of 1 chunks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("command failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
		})
	}
}

// TestCommandErrors tests argument validation
func TestCommandErrors(t *testing.T) {
	dir, _ := testServer(t)
	path := filepath.Join(dir, "test.pdf")

	tests := []struct {
		name string
		args []string
	}{
		{"info without location", []string{"info"}},
		{"object without number", []string{"object", "doc.pdf"}},
		{"object bad number", []string{"object", "doc.pdf", "x"}},
		{"missing file", []string{"info", filepath.Join(t.TempDir(), "none.pdf")}},
		{"bad redis url", []string{"info", "--redis", "bogus://", "doc.pdf"}},
		{"serve without dir", []string{"serve"}},
		{"serve file", []string{"serve", path}},
		{"page bad number", []string{"page", path, "0"}},
		{"page out of range", []string{"page", path, "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// pagedPDF builds a two page document. The page tree carries /Count only
// when withCount is set.
func pagedPDF(withCount bool) []byte {
	count := ""
	if withCount {
		count = " /Count 2"
	}
	bodies := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R]" + count + " /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R /Rotate 90 >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(bodies)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(bodies)+1, xref)
	return buf.Bytes()
}

// TestPageCommand tests page lookup with and without a page count
func TestPageCommand(t *testing.T) {
	tests := []struct {
		name      string
		withCount bool
		want      []string
	}{
		{"counted", true, []string{"Page:     2 of 2", "MediaBox: [0 0 612 792]", "Rotate:   90"}},
		{"no count", false, []string{"Page:     2 of ?", "Rotate:   90"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "paged.pdf")
			if err := os.WriteFile(path, pagedPDF(tt.withCount), 0644); err != nil {
				t.Fatal(err)
			}
			out, err := run(t, "page", path, "2")
			if err != nil {
				t.Fatalf("page failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
		})
	}
}

// TestRouter tests range and health requests against the file server
func TestRouter(t *testing.T) {
	_, srv := testServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/test.pdf", nil)
	req.Header.Set("Range", "bytes=0-7")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent || string(body) != "%PDF-1.7" {
		t.Errorf("got %s %q", resp.Status, body)
	}

	resp, err = srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health returned %s", resp.Status)
	}

	resp, err = srv.Client().Get(srv.URL + "/none.pdf")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %s", resp.Status)
	}
}
