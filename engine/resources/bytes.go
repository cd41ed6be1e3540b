package resources

import "unsafe"

// SliceBytes reinterprets a slice of plain values as its raw bytes without copying.
// T must not contain pointers.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
