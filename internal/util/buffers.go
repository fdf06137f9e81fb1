// Package util provides shared utilities for termsense.
package util

import (
	"sync"
)

// DefaultBufferSize is the size of pooled read buffers and the default per-session
// prompt buffer cap.
const DefaultBufferSize = 4096

// bufferPool reuses PTY read buffers so the chunk hot path does not allocate.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// GetBuffer retrieves a buffer from the pool.
// The buffer should be returned via PutBuffer when done.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool for reuse.
func PutBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != DefaultBufferSize {
		return // Don't pool resliced or foreign buffers
	}
	bufferPool.Put(buf)
}

// CopyChunk returns p as a string, replacing invalid UTF-8 produced by a read that split a
// multi-byte sequence. The trailing partial sequence, if any, is returned separately so the
// caller can prepend it to the next read.
func CopyChunk(p []byte) (chunk string, carry []byte) {
	end := len(p)
	// Look back at most 3 bytes for an unfinished sequence.
	for i := len(p) - 1; i >= 0 && i >= len(p)-3; i-- {
		c := p[i]
		if c < 0x80 {
			break
		}
		if c >= 0xC0 {
			need := 2
			switch {
			case c >= 0xF0:
				need = 4
			case c >= 0xE0:
				need = 3
			}
			if len(p)-i < need {
				end = i
			}
			break
		}
	}
	if end < len(p) {
		carry = append([]byte(nil), p[end:]...)
	}
	return string(p[:end]), carry
}
