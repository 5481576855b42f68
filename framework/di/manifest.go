package di

// Manifest is the ordered set of discoverable classes. Registration order is
// the discovery order used for tags and type matching.
type Manifest struct {
	classes []*Class
	index   map[string]*Class
}

// NewManifest creates a manifest holding classes.
func NewManifest(classes ...*Class) (*Manifest, error) {
	m := &Manifest{index: make(map[string]*Class)}
	if err := m.Register(classes...); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds classes in order. A class whose options failed is rejected
// with the option error.
func (m *Manifest) Register(classes ...*Class) error {
	if m.index == nil {
		m.index = make(map[string]*Class)
	}
	for _, c := range classes {
		if c == nil {
			return &InvalidClassError{Reason: "nil class"}
		}
		if c.err != nil {
			return c.err
		}
		if _, dup := m.index[c.ID]; dup {
			return &DuplicateServiceError{ID: c.ID}
		}
		m.index[c.ID] = c
		m.classes = append(m.classes, c)
	}
	return nil
}

// Class returns the class registered under id.
func (m *Manifest) Class(id string) (*Class, bool) {
	c, ok := m.index[id]
	return c, ok
}

// Classes returns the classes in discovery order.
func (m *Manifest) Classes() []*Class {
	out := make([]*Class, len(m.classes))
	copy(out, m.classes)
	return out
}

// Len returns the number of registered classes.
func (m *Manifest) Len() int { return len(m.classes) }
