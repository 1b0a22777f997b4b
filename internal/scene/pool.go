package scene

import "sync"

// vecPool recycles scratch vector slices between steps.
type vecPool struct {
	pool sync.Pool
}

func (p *vecPool) get(n int) []Vec3 {
	if s, ok := p.pool.Get().([]Vec3); ok && cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = Vec3{}
		}
		return s
	}
	return make([]Vec3, n)
}

func (p *vecPool) put(s []Vec3) {
	if s != nil {
		p.pool.Put(s[:0])
	}
}
