package utils

// Guard runs cleanup for a half-built resource (an open client, a started worker) when the
// function building it returns early with an error. Correct usage:
//
//	guard := NewGuard(func() { client.Disconnect(ctx) })
//	defer guard.OnFail()
//	if err != nil { return nil, err }
//	guard.Success()
//	return store, nil
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that runs onFailCleanup unless Success is called first.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success declares the function succeeded and the "failure" cleanup code does not need to be
// executed.
func (guard *Guard) Success() {
	guard.success = true
}
