// Package storage abstracts where original files and derived artifacts
// live. The local backend writes under a single root; paths are
// relative keys so a different backend can be swapped in.
package storage

import "context"

// Backend stores and retrieves blobs by relative key.
type Backend interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// OriginalKey builds the content-addressed location of an original:
// originals/ab/cd/<hash><ext>, fanned out on the first four hash chars
// to keep directory sizes bounded.
func OriginalKey(hash, ext string) string {
	if len(hash) < 4 {
		return "originals/" + hash + ext
	}
	return "originals/" + hash[0:2] + "/" + hash[2:4] + "/" + hash + ext
}
