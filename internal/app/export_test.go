package app

// Pool returns a copy of the names left to draw.
func (p *Picker) Pool() []string {
	return append([]string(nil), p.pool...)
}
