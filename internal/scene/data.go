package scene

// Data is the polymorphic payload carried by a Node. The persistence
// engine never interprets payload bytes itself; it dispatches on the
// declared type name to find a serializer or reader for it.
type Data interface {
	TypeName() string
}

// PropertyProvider is an optional interface for payloads that carry
// their own property list, persisted separately from the node's lists.
type PropertyProvider interface {
	Properties() *PropertyList
}

// RawData is an opaque byte payload. It is the lowest common denominator
// payload type: anything that can be dumped to a single file.
type RawData struct {
	Bytes []byte

	props *PropertyList
}

func (d *RawData) TypeName() string { return "RawData" }

func (d *RawData) Properties() *PropertyList {
	if d.props == nil {
		d.props = NewPropertyList()
	}
	return d.props
}

// JSONData is a structured payload holding an arbitrary JSON document.
type JSONData struct {
	Value any

	props *PropertyList
}

func (d *JSONData) TypeName() string { return "JSONData" }

func (d *JSONData) Properties() *PropertyList {
	if d.props == nil {
		d.props = NewPropertyList()
	}
	return d.props
}
