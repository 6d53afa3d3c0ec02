package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// faxParams holds the CCITTFaxDecode parameters this decoder honours.
type faxParams struct {
	k        int
	columns  int
	rows     int
	blackIs1 bool
}

func newFaxParams(params Params) faxParams {
	fp := faxParams{
		k:       getIntParam(params, "K", 0),
		columns: getIntParam(params, "Columns", 1728),
		rows:    getIntParam(params, "Rows", 0),
	}
	if v, ok := params["BlackIs1"].(bool); ok {
		fp.blackIs1 = v
	}
	return fp
}

// subFormat maps K to the CCITT encoding: negative K is pure Group 4,
// anything else Group 3.
func (fp faxParams) subFormat() ccitt.SubFormat {
	if fp.k < 0 {
		return ccitt.Group4
	}
	return ccitt.Group3
}

func (fp faxParams) height() int {
	if fp.rows <= 0 {
		return ccitt.AutoDetectHeight
	}
	return fp.rows
}

// CCITTFaxDecode decodes Group 3 and Group 4 fax data into one byte per
// row-packed bit, MSB first. BlackIs1 inverts the output.
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	fp := newFaxParams(params)
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, fp.subFormat(), fp.columns, fp.height(),
		&ccitt.Options{Invert: fp.blackIs1})
	return io.ReadAll(r)
}
