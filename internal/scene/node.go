package scene

// Node is one vertex of a scene graph: a named, polymorphic payload plus
// one default property list and optional per-view-context lists. Nodes
// are owned by the Storage container; the persistence engine only ever
// borrows them for the duration of a save or load pass.
type Node struct {
	Name string
	Data Data

	props        *PropertyList
	contextProps map[string]*PropertyList
	contextNames []string // deterministic iteration order
}

func NewNode(name string) *Node {
	return &Node{Name: name}
}

// Properties returns the default (view-independent) property list,
// creating it on first use.
func (n *Node) Properties() *PropertyList {
	if n.props == nil {
		n.props = NewPropertyList()
	}
	return n.props
}

// ContextProperties returns the property list for a named view context,
// creating it on first use.
func (n *Node) ContextProperties(context string) *PropertyList {
	if n.contextProps == nil {
		n.contextProps = make(map[string]*PropertyList)
	}
	list, ok := n.contextProps[context]
	if !ok {
		list = NewPropertyList()
		n.contextProps[context] = list
		n.contextNames = append(n.contextNames, context)
	}
	return list
}

// ContextNames returns the names of all view-context lists in the order
// they were first created.
func (n *Node) ContextNames() []string {
	return n.contextNames
}
