package endpoint

// Descriptor describes an endpoint template and the configuration it
// accepts.
type Descriptor struct {
	ID          string             `json:"id"`
	Family      string             `json:"family"`
	Title       string             `json:"title"`
	Vendor      string             `json:"vendor"`
	Description string             `json:"description,omitempty"`
	DocsURL     string             `json:"docsUrl,omitempty"`
	Fields      []*FieldDescriptor `json:"fields"`
}

// FieldDescriptor is one configuration key.
type FieldDescriptor struct {
	Key          string         `json:"key"`
	Label        string         `json:"label"`
	ValueType    string         `json:"valueType"` // string, integer, boolean, password
	Required     bool           `json:"required,omitempty"`
	Description  string         `json:"description,omitempty"`
	Placeholder  string         `json:"placeholder,omitempty"`
	DefaultValue string         `json:"defaultValue,omitempty"`
	Advanced     bool           `json:"advanced,omitempty"`
	Sensitive    bool           `json:"sensitive,omitempty"`
	Options      []*FieldOption `json:"options,omitempty"`
}

// FieldOption is an allowed value of an enumerated field.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sensitive returns the keys of fields that must not be logged.
func (d *Descriptor) Sensitive() []string {
	var keys []string
	for _, f := range d.Fields {
		if f.Sensitive {
			keys = append(keys, f.Key)
		}
	}
	return keys
}
