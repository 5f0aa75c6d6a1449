package stream

import "sync"

var scratch = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

// GetScratch returns a pooled buffer of length n. Return it with PutScratch.
func GetScratch(n int) *[]byte {
	bp := scratch.Get().(*[]byte)
	if cap(*bp) < n {
		*bp = make([]byte, n)
	}
	*bp = (*bp)[:n]
	return bp
}

// PutScratch returns a buffer obtained from GetScratch to the pool.
func PutScratch(bp *[]byte) {
	if bp == nil {
		return
	}
	*bp = (*bp)[:0]
	scratch.Put(bp)
}
