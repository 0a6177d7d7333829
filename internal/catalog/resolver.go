package catalog

// LabelResolver turns coded source attributes into human labels.
// The formatter only talks to this interface so the join strategy can change
// (by id instead of by label text) without touching the formatting rules.
type LabelResolver interface {
	// OptionLabel returns the label of an attribute by numeric id
	OptionLabel(attributeID string) (string, bool)
	// CodeForLabel reverse-maps an attribute label to its attribute code
	CodeForLabel(label string) (string, bool)
	// ValueLabel resolves an internal option value of an attribute code
	ValueLabel(code, value string) (string, bool)
	// AttributeLabel returns the label of an attribute code
	AttributeLabel(code string) (string, bool)
}

// MapResolver resolves labels through AttributeMaps using label text as the join key
type MapResolver struct {
	maps *AttributeMaps
}

// NewMapResolver creates a resolver over the given maps
func NewMapResolver(maps *AttributeMaps) *MapResolver {
	return &MapResolver{maps: maps}
}

// OptionLabel looks the attribute id up in IDToLabel; blank labels count as missing
func (r *MapResolver) OptionLabel(attributeID string) (string, bool) {
	label, ok := r.maps.IDToLabel[attributeID]
	return label, ok && label != ""
}

// CodeForLabel returns the first attribute code registered under label
func (r *MapResolver) CodeForLabel(label string) (string, bool) {
	code, ok := r.maps.labelToCode[label]
	return code, ok
}

// ValueLabel returns the label of the first option of code whose value equals value
func (r *MapResolver) ValueLabel(code, value string) (string, bool) {
	for _, opt := range r.maps.CodeToOptions[code] {
		if opt.Value == value {
			return opt.Label, true
		}
	}
	return "", false
}

// AttributeLabel looks the code up in CodeToLabel; blank labels count as missing
func (r *MapResolver) AttributeLabel(code string) (string, bool) {
	label, ok := r.maps.CodeToLabel[code]
	return label, ok && label != ""
}
