package cairodeps

import (
	"sync"
	"sync/atomic"
)

var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit queues fn to be run by RunAtExit, e.g. releasing the build
// directory lock or removing temporary batch files.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs all registered functions in reverse registration order. All
// functions run; the first error is returned.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	atExit.Lock()
	defer atExit.Unlock()
	var first error
	for i := len(atExit.fns) - 1; i >= 0; i-- {
		if err := atExit.fns[i](); err != nil && first == nil {
			first = err
		}
	}
	atExit.fns = nil
	return first
}
