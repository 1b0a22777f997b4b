package gate

// WithRead runs fn under a read hold, releasing on every exit path.
func (g *Gate) WithRead(fn func()) {
	g.LockRead()
	defer g.UnlockRead()
	fn()
}

// WithWrite runs fn under a write hold, releasing on every exit path
// including panic and early error return.
func (g *Gate) WithWrite(fn func() error) error {
	if err := g.lockWrite(1); err != nil {
		return err
	}
	defer g.UnlockWrite()
	return fn()
}
