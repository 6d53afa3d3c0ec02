//go:build !unix

package transport

import "os"

func mmapFile(*os.File, int64) ([]byte, error) {
	return nil, nil
}

func munmapFile([]byte) error {
	return nil
}
