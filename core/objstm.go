package core

import (
	"fmt"
)

// ObjectStream represents a PDF Object Stream (Type /ObjStm), introduced in PDF 1.5.
// Object streams store multiple objects in a single compressed stream, providing
// better compression than storing objects individually.
type ObjectStream struct {
	stream  *Stream              // Underlying stream object
	n       int                  // Number of objects in stream
	first   int                  // Byte offset of first object in decoded data
	objects map[int]Object       // Cached parsed objects (index -> object)
	offsets []objectStreamOffset // Parsed offset pairs from header
	decoded []byte               // Decoded stream data (cached)
	src     *MemorySource        // Source over decoded
}

// objectStreamOffset pairs an object number with its byte offset within the decoded data.
type objectStreamOffset struct {
	ObjNum int // Object number
	Offset int // Byte offset within decoded data (relative to First)
}

// NewObjectStream creates an ObjectStream from a Stream object.
// The stream must have Type /ObjStm and required entries /N and /First.
// Returns an error if the stream is not a valid object stream.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}

	// /Type is required but some producers omit it
	if typeObj := stream.Dict.Get("Type"); typeObj != nil {
		typeName, ok := typeObj.(Name)
		if !ok || string(typeName) != "ObjStm" {
			return nil, formatErrorf("stream is not an object stream, got type: %v", typeObj)
		}
	}

	nInt, ok := stream.Dict.GetInt("N")
	if !ok {
		return nil, formatErrorf("invalid object stream: /N must be an integer")
	}
	n := int(nInt)
	if n < 0 {
		return nil, formatErrorf("invalid /N value: %d", n)
	}

	firstInt, ok := stream.Dict.GetInt("First")
	if !ok {
		return nil, formatErrorf("invalid object stream: /First must be an integer")
	}
	first := int(firstInt)
	if first < 0 {
		return nil, formatErrorf("invalid /First value: %d", first)
	}

	os := &ObjectStream{
		stream:  stream,
		n:       n,
		first:   first,
		objects: make(map[int]Object),
	}

	return os, nil
}

// decode decodes the stream data and parses the header. Called lazily on first access.
func (os *ObjectStream) decode() error {
	if os.decoded != nil {
		return nil // Already decoded
	}

	decoded, err := os.stream.Decode()
	if err != nil {
		if _, missing := IsMissingData(err); missing {
			return err
		}
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	os.decoded = decoded
	os.src = NewMemorySource(decoded)

	// Parse the header: N pairs of (objNum offset)
	// The header is plain text integers separated by whitespace
	if err := os.parseHeader(); err != nil {
		os.decoded, os.src, os.offsets = nil, nil, nil
		return fmt.Errorf("failed to parse object stream header: %w", err)
	}

	return nil
}

// parseHeader parses the object stream header containing N pairs of integers.
// Format: "objNum1 offset1 objNum2 offset2 ... objNumN offsetN"
func (os *ObjectStream) parseHeader() error {
	if os.first > len(os.decoded) {
		return formatErrorf("First offset (%d) exceeds decoded data length (%d)", os.first, len(os.decoded))
	}

	parser, err := NewParser(os.src.MakeSubStream(0, int64(os.first)))
	if err != nil {
		return err
	}

	os.offsets = make([]objectStreamOffset, 0, os.n)

	for i := 0; i < os.n; i++ {
		// Parse object number
		objNumObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse object number %d: %w", i, err)
		}
		objNum, ok := objNumObj.(Int)
		if !ok {
			return fmt.Errorf("object number %d is not an integer: %T", i, objNumObj)
		}

		// Parse offset
		offsetObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse offset %d: %w", i, err)
		}
		offset, ok := offsetObj.(Int)
		if !ok {
			return fmt.Errorf("offset %d is not an integer: %T", i, offsetObj)
		}
		if offset < 0 || int(offset) > len(os.decoded)-os.first {
			return formatErrorf("object offset %d out of range in object stream header", offset)
		}

		os.offsets = append(os.offsets, objectStreamOffset{
			ObjNum: int(objNum),
			Offset: int(offset),
		})
	}

	return nil
}

// GetObjectByIndex extracts an object by its index within the stream (0-based).
// Returns the object, its object number, and any error. The index corresponds
// to the position in the header, not the object number.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	// Ensure stream is decoded
	if err := os.decode(); err != nil {
		return nil, 0, err
	}

	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.offsets))
	}

	// Check cache
	if obj, ok := os.objects[index]; ok {
		return obj, os.offsets[index].ObjNum, nil
	}

	// Calculate the actual offset in the decoded data
	offset := os.first + os.offsets[index].Offset

	// Determine the end of this object's data
	// It extends until the next object's offset, or end of data
	var endOffset int
	if index+1 < len(os.offsets) {
		endOffset = os.first + os.offsets[index+1].Offset
	} else {
		endOffset = len(os.decoded)
	}

	if offset < os.first || offset >= len(os.decoded) {
		return nil, 0, fmt.Errorf("object offset %d exceeds decoded data length %d", offset, len(os.decoded))
	}
	if endOffset > len(os.decoded) || endOffset <= offset {
		endOffset = len(os.decoded)
	}

	parser, err := NewParser(os.src.MakeSubStream(int64(offset), int64(endOffset-offset)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}

	// Cache the parsed object
	os.objects[index] = obj

	return obj, os.offsets[index].ObjNum, nil
}

// GetObjectByNumber finds and extracts an object by its object number.
// Returns the object, its index within the stream, and any error.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	// Ensure stream is decoded
	if err := os.decode(); err != nil {
		return nil, 0, err
	}

	// Find the index for this object number
	for i, entry := range os.offsets {
		if entry.ObjNum == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, i, err
		}
	}

	return nil, 0, formatErrorf("object %d not found in object stream", objNum)
}

// Objects parses every object in the stream in one pass and returns them
// with their object numbers, in header order.
func (os *ObjectStream) Objects() ([]Object, []int, error) {
	if err := os.decode(); err != nil {
		return nil, nil, err
	}
	objs := make([]Object, len(os.offsets))
	nums := make([]int, len(os.offsets))
	for i := range os.offsets {
		obj, num, err := os.GetObjectByIndex(i)
		if err != nil {
			return nil, nil, err
		}
		objs[i] = obj
		nums[i] = num
	}
	return objs, nums, nil
}
