package rowdb

import "sync"

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 128)
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

// Buffers that grew past this are left to the GC instead of being pooled.
const maxPooledValueSize = 1 << 20

func releaseValueBytes(b []byte) {
	if cap(b) > maxPooledValueSize {
		return
	}
	valueBytesPool.Put(b[:0])
}
