package cirjson

// DupDetector finds repeated property names within one object. Most objects
// are small, so the first two names are compared directly and a set is only
// built from the third name on.
type DupDetector struct {
	first     string
	second    string
	count     int
	seen      map[string]struct{}
	reference any
}

// NewDupDetector creates a detector; reference is an optional description of
// the source, used in error messages.
func NewDupDetector(reference any) *DupDetector {
	return &DupDetector{reference: reference}
}

// Child returns a fresh detector for a nested object.
func (d *DupDetector) Child() *DupDetector {
	return &DupDetector{reference: d.reference}
}

func (d *DupDetector) Reset() {
	d.first = ""
	d.second = ""
	d.count = 0
	d.seen = nil
}

func (d *DupDetector) Reference() any {
	return d.reference
}

// IsDup records name and tells whether it was seen before.
func (d *DupDetector) IsDup(name string) bool {
	switch d.count {
	case 0:
		d.first = name
		d.count++
		return false
	case 1:
		if name == d.first {
			return true
		}
		d.second = name
		d.count++
		return false
	case 2:
		if name == d.first || name == d.second {
			return true
		}
		d.seen = make(map[string]struct{}, 16)
		d.seen[d.first] = struct{}{}
		d.seen[d.second] = struct{}{}
	}

	if _, ok := d.seen[name]; ok {
		return true
	}
	d.seen[name] = struct{}{}
	d.count++
	return false
}
