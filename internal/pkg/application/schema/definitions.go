package schema

// RecordTypeDefinition is the configuration of a single record type
type RecordTypeDefinition struct {
	Name    string             `yaml:"name"`
	Fields  []FieldDefinition  `yaml:"fields"`
	Filters []FilterDefinition `yaml:"filters"`
}

type FieldDefinition struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func (fd FieldDefinition) valueType() (ValueType, error) {
	return ParseValueType(fd.Type)
}

// FilterDefinition configures a filter type. The parameter is either a value
// type name or, when fields are given, an object with those fields.
type FilterDefinition struct {
	Name      string            `yaml:"name"`
	Parameter string            `yaml:"parameter"`
	Fields    []FieldDefinition `yaml:"fields"`
	Property  string            `yaml:"property"`
	Operation string            `yaml:"operation"`
}
