package store

import "github.com/0xRadioAc7iv/go-rmp/internal/record"

// Bucket holds every record whose key hashes to the same value. Keys are
// unique within a bucket; order is incidental.
type Bucket []record.Record

// Find returns the index of the record with key, or -1.
func (b Bucket) Find(key string) int {
	for i := range b {
		if b[i].Key == key {
			return i
		}
	}
	return -1
}

// Remove drops the record at index i, keeping the order of the rest.
func (b Bucket) Remove(i int) Bucket {
	return append(b[:i], b[i+1:]...)
}
