package core

import (
	"fmt"

	"github.com/tsawler/pdfrange/internal/filters"
)

// Decode decrypts the raw body, if the stream was parsed with a cipher
// transform, and applies the Filter chain from the stream dictionary. The
// result is cached. Decode fails with a *MissingDataError while the raw
// body is still incomplete.
func (s *Stream) Decode() ([]byte, error) {
	if s.decoded != nil {
		return s.decoded, nil
	}

	data, err := s.RawBytes()
	if err != nil {
		return nil, err
	}
	if s.transform != nil {
		data = s.transform.DecryptStream(data)
	}

	filterObj := s.Dict.Get("Filter")
	paramsObj := s.Dict.Get("DecodeParms")
	if paramsObj == nil {
		paramsObj = s.Dict.Get("DP")
	}

	switch f := filterObj.(type) {
	case nil:
	case Name:
		data, err = filters.Decode(string(f), data, dictToParams(paramsObjToDict(paramsObj)))
		if err != nil {
			return nil, fmt.Errorf("filter %s failed: %w", f, err)
		}
	case Array:
		for i, filter := range f {
			filterName, ok := filter.(Name)
			if !ok {
				return nil, fmt.Errorf("filter %d is not a name: %T", i, filter)
			}

			var params Dict
			if paramsArray, ok := paramsObj.(Array); ok {
				if i < len(paramsArray) {
					params = paramsObjToDict(paramsArray[i])
				}
			} else {
				params = paramsObjToDict(paramsObj)
			}

			data, err = filters.Decode(string(filterName), data, dictToParams(params))
			if err != nil {
				return nil, fmt.Errorf("filter %d (%s) failed: %w", i, filterName, err)
			}
		}
	default:
		return nil, fmt.Errorf("invalid Filter type: %T", filterObj)
	}

	s.decoded = data
	return data, nil
}

// DecodedSource returns the decoded body as a resident Source.
func (s *Stream) DecodedSource() (Source, error) {
	data, err := s.Decode()
	if err != nil {
		return nil, err
	}
	return NewMemorySource(data), nil
}

// paramsObjToDict converts a DecodeParms object to a Dict.
// Returns nil if the object is nil, Null, or not a Dict.
func paramsObjToDict(obj Object) Dict {
	if obj == nil {
		return nil
	}

	if dict, ok := obj.(Dict); ok {
		return dict
	}

	// Null is treated as no params
	if _, ok := obj.(Null); ok {
		return nil
	}

	return nil
}

// dictToParams converts a core.Dict to filters.Params, translating PDF object
// types to Go primitive types (Int->int, Real->float64, Bool->bool, etc.).
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}

	params := make(filters.Params)
	for k, v := range dict {
		// Convert PDF objects to Go primitives
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		default:
			// Keep other types as-is
			params[k] = v
		}
	}
	return params
}
