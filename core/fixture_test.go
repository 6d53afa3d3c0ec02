package core

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
)

// testObject is one indirect object of a generated document.
type testObject struct {
	num  int
	body string
}

// fixture lays out a small PDF. Objects in compressed go into a single
// object stream, which requires an xref stream (full or hybrid).
type fixture struct {
	objects    []testObject
	compressed []testObject
	xrefStream bool
	hybrid     bool
	flate      bool
	trailer    string
	// misindexed reverses the object stream indexes in the xref stream.
	misindexed bool
}

type fixtureEntry struct {
	typ    int
	field2 int64
	field3 int
}

func (f fixture) build() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n")

	entries := map[int]fixtureEntry{0: {typ: 0, field3: 65535}}
	highest := 0
	for _, o := range append(append([]testObject{}, f.objects...), f.compressed...) {
		if o.num > highest {
			highest = o.num
		}
	}

	for _, o := range f.objects {
		entries[o.num] = fixtureEntry{typ: 1, field2: int64(buf.Len())}
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	var compressedNums []int
	if len(f.compressed) > 0 {
		highest++
		stmNum := highest
		var hdr, body bytes.Buffer
		for i, o := range f.compressed {
			fmt.Fprintf(&hdr, "%d %d ", o.num, body.Len())
			body.WriteString(o.body)
			body.WriteString(" ")
			index := i
			if f.misindexed {
				index = len(f.compressed) - 1 - i
			}
			entries[o.num] = fixtureEntry{typ: 2, field2: int64(stmNum), field3: index}
			compressedNums = append(compressedNums, o.num)
		}
		entries[stmNum] = fixtureEntry{typ: 1, field2: int64(buf.Len())}
		dict := fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(f.compressed), hdr.Len())
		f.writeStream(&buf, stmNum, dict, append(hdr.Bytes(), body.Bytes()...))
	}

	if !f.xrefStream && !f.hybrid {
		size := highest + 1
		xrefPos := buf.Len()
		f.writeTable(&buf, entries, nil)
		fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", size, f.trailer, xrefPos)
		return buf.Bytes()
	}

	highest++
	xrefNum := highest
	size := highest + 1
	xrefPos := buf.Len()
	entries[xrefNum] = fixtureEntry{typ: 1, field2: int64(xrefPos)}

	if f.xrefStream {
		var rows []byte
		for num := 0; num < size; num++ {
			rows = append(rows, fixtureRow(entries[num])...)
		}
		dict := fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Root 1 0 R%s", size, f.trailer)
		f.writeStream(&buf, xrefNum, dict, rows)
		fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefPos)
		return buf.Bytes()
	}

	// Hybrid: the xref stream lists only the compressed objects and the
	// classic table points at it through XRefStm.
	var rows []byte
	var index []string
	for _, run := range runs(compressedNums) {
		index = append(index, fmt.Sprintf("%d %d", run[0], run[1]))
		for num := run[0]; num < run[0]+run[1]; num++ {
			rows = append(rows, fixtureRow(entries[num])...)
		}
	}
	dict := fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Index [%s]", size, joinFields(index))
	f.writeStream(&buf, xrefNum, dict, rows)

	tablePos := buf.Len()
	f.writeTable(&buf, entries, compressedNums)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /XRefStm %d%s >>\nstartxref\n%d\n%%%%EOF\n",
		size, xrefPos, f.trailer, tablePos)
	return buf.Bytes()
}

func (f fixture) writeStream(buf *bytes.Buffer, num int, dict string, data []byte) {
	if f.flate {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		data = z.Bytes()
		dict += " /Filter /FlateDecode"
	}
	fmt.Fprintf(buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream\nendobj\n")
}

// writeTable writes a classic table with one subsection per run of
// uncompressed or free object numbers, skipping the excluded ones.
func (f fixture) writeTable(buf *bytes.Buffer, entries map[int]fixtureEntry, exclude []int) {
	skip := make(map[int]bool)
	for _, n := range exclude {
		skip[n] = true
	}
	var nums []int
	for n := range entries {
		if !skip[n] {
			nums = append(nums, n)
		}
	}
	buf.WriteString("xref\n")
	for _, run := range runs(nums) {
		fmt.Fprintf(buf, "%d %d\n", run[0], run[1])
		for num := run[0]; num < run[0]+run[1]; num++ {
			e := entries[num]
			if e.typ == 0 {
				fmt.Fprintf(buf, "%010d %05d f \n", 0, e.field3)
			} else {
				fmt.Fprintf(buf, "%010d %05d n \n", e.field2, 0)
			}
		}
	}
}

func fixtureRow(e fixtureEntry) []byte {
	return []byte{
		byte(e.typ),
		byte(e.field2 >> 24), byte(e.field2 >> 16), byte(e.field2 >> 8), byte(e.field2),
		byte(e.field3 >> 8), byte(e.field3),
	}
}

// runs groups object numbers into [first, count] pairs of consecutive values.
func runs(nums []int) [][2]int {
	sorted := append([]int{}, nums...)
	sort.Ints(sorted)
	var out [][2]int
	for _, n := range sorted {
		if len(out) > 0 && out[len(out)-1][0]+out[len(out)-1][1] == n {
			out[len(out)-1][1]++
			continue
		}
		out = append(out, [2]int{n, 1})
	}
	return out
}

func joinFields(fields []string) string {
	var b bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f)
	}
	return b.String()
}

// appendUpdate appends an incremental update that redefines one object.
func appendUpdate(base []byte, num int, body string) []byte {
	prev, err := FindStartXRef(NewMemorySource(base))
	if err != nil {
		panic(err)
	}
	var buf bytes.Buffer
	buf.Write(base)
	objPos := buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 1\n0000000000 65535 f \n%d 1\n%010d 00000 n \n", num, objPos)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", num+1, prev, xrefPos)
	return buf.Bytes()
}

// corruptStartXRef points the final startxref at the file header.
func corruptStartXRef(data []byte) []byte {
	idx := bytes.LastIndex(data, []byte("startxref"))
	out := append([]byte{}, data[:idx]...)
	return append(out, "startxref\n5\n%%EOF\n"...)
}

func sampleObjects() []testObject {
	return []testObject{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"},
		{4, "(old title)"},
	}
}
