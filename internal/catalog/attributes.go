package catalog

import "fmt"

// MetadataError reports a malformed attribute schema entry
type MetadataError struct {
	Index  int
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("malformed attribute metadata at index %d: %s", e.Index, e.Reason)
}

// AttributeMaps holds lookups built from the source attribute schema.
// It is read-only after construction and safe for concurrent use.
type AttributeMaps struct {
	IDToLabel     map[string]string
	CodeToLabel   map[string]string
	CodeToOptions map[string][]AttributeOption

	// labelToCode keeps the first code seen for each label
	labelToCode map[string]string
}

// BuildAttributeMaps builds lookup maps from the raw attribute listing
func BuildAttributeMaps(items []AttributeMetadata) (*AttributeMaps, error) {
	maps := &AttributeMaps{
		IDToLabel:     make(map[string]string, len(items)),
		CodeToLabel:   make(map[string]string, len(items)),
		CodeToOptions: make(map[string][]AttributeOption),
		labelToCode:   make(map[string]string, len(items)),
	}

	for i, item := range items {
		if item.AttributeID == "" {
			return nil, &MetadataError{Index: i, Reason: "missing attribute_id"}
		}
		if item.AttributeCode == "" {
			return nil, &MetadataError{Index: i, Reason: "missing attribute_code"}
		}

		maps.IDToLabel[item.AttributeID] = item.DefaultFrontendLabel
		maps.CodeToLabel[item.AttributeCode] = item.DefaultFrontendLabel
		if _, exists := maps.labelToCode[item.DefaultFrontendLabel]; !exists {
			maps.labelToCode[item.DefaultFrontendLabel] = item.AttributeCode
		}

		if len(item.Options) == 0 {
			continue
		}
		options := make([]AttributeOption, 0, len(item.Options))
		for _, opt := range item.Options {
			if opt.Value == "" {
				continue
			}
			options = append(options, opt)
		}
		maps.CodeToOptions[item.AttributeCode] = options
	}

	return maps, nil
}

// NewAttributeMaps assembles maps directly, deriving the reverse label index.
// Codes are indexed in the order given by codes.
func NewAttributeMaps(idToLabel, codeToLabel map[string]string, codeToOptions map[string][]AttributeOption, codes ...string) *AttributeMaps {
	maps := &AttributeMaps{
		IDToLabel:     idToLabel,
		CodeToLabel:   codeToLabel,
		CodeToOptions: codeToOptions,
		labelToCode:   make(map[string]string, len(codeToLabel)),
	}
	for _, code := range codes {
		if label, ok := codeToLabel[code]; ok {
			if _, exists := maps.labelToCode[label]; !exists {
				maps.labelToCode[label] = code
			}
		}
	}
	for code, label := range codeToLabel {
		if _, exists := maps.labelToCode[label]; !exists {
			maps.labelToCode[label] = code
		}
	}
	return maps
}
