package filters

import "fmt"

// Params represents decode parameters from PDF stream dictionaries.
// Common parameters include Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// Decoder decodes one stream body.
type Decoder func(data []byte, params Params) ([]byte, error)

// ErrUnsupported is returned for filters whose output is left to a
// downstream consumer, such as image codecs.
type ErrUnsupported struct {
	Filter string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("unsupported filter: %s", e.Filter)
}

var decoders = map[string]Decoder{
	"FlateDecode":     FlateDecode,
	"LZWDecode":       LZWDecode,
	"RunLengthDecode": ignoreParams(RunLengthDecode),
	"ASCIIHexDecode":  ignoreParams(ASCIIHexDecode),
	"ASCII85Decode":   ignoreParams(ASCII85Decode),
	"CCITTFaxDecode":  CCITTFaxDecode,
}

// Abbreviated names allowed in inline images and by lenient producers.
var aliases = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"RL":  "RunLengthDecode",
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"CCF": "CCITTFaxDecode",
}

// passthrough filters produce data that is consumed still encoded.
var passthrough = map[string]bool{
	"DCTDecode": true,
	"DCT":       true,
	"JPXDecode": true,
}

func ignoreParams(fn func([]byte) ([]byte, error)) Decoder {
	return func(data []byte, _ Params) ([]byte, error) {
		return fn(data)
	}
}

// Decode applies the filter called name to data.
func Decode(name string, data []byte, params Params) ([]byte, error) {
	if passthrough[name] {
		return data, nil
	}
	if full, ok := aliases[name]; ok {
		name = full
	}
	dec, ok := decoders[name]
	if !ok {
		return nil, &ErrUnsupported{Filter: name}
	}
	return dec(data, params)
}
