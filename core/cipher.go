package core

// CipherTransform decrypts the strings and stream bodies of one indirect
// object.
type CipherTransform interface {
	DecryptString(s []byte) []byte
	DecryptStream(data []byte) []byte
}

// CipherTransformFactory returns the transform for the object (num, gen).
type CipherTransformFactory interface {
	CreateCipherTransform(num, gen int) CipherTransform
}

// SecurityHandler builds a CipherTransformFactory from the trailer's Encrypt
// dictionary and the first element of the file identifier. Key derivation
// lives behind this function.
type SecurityHandler func(encrypt Dict, fileID []byte) (CipherTransformFactory, error)
