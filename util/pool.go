package util

import (
	"io"
	"sync"
)

// RelayBufSize is the copy buffer used for each direction of a relayed
// connection.
const RelayBufSize = 32 * 1024

// Each relayed gateway connection holds two buffers while it is open.
var relayBufs = sync.Pool{
	New: func() any {
		buf := make([]byte, RelayBufSize)
		return &buf
	},
}

// copyRelay is io.CopyBuffer with a pooled buffer.  Sockets that splice
// (TCP to TCP) never touch the buffer.
func copyRelay(dst io.Writer, src io.Reader) (int64, error) {
	buf := relayBufs.Get().(*[]byte)
	defer relayBufs.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}
