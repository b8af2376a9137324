package ptg

import "github.com/mchalupa/dg-go/ivl"

// Offset and Unknown are re-exported from ivl for convenience, since
// every PSNode operand offset is measured in the same unit as the
// byte-interval ADTs the rest of the pipeline uses.
type Offset = ivl.Offset

const Unknown = ivl.Unknown

// PSNodeID identifies a PSNode within its owning PointerGraph's dense
// arena; every cross-reference between nodes is an id, never a
// pointer. The zero value is not a valid node.
type PSNodeID int

// Distinguished singleton nodes, pre-allocated by every PointerGraph.
const (
	invalidID PSNodeID = iota
	NullPtr
	UnknownMemory
	Invalidated
	firstUserID
)

func (id PSNodeID) String() string {
	switch id {
	case invalidID:
		return "<invalid>"
	case NullPtr:
		return "null"
	case UnknownMemory:
		return "unknown-memory"
	case Invalidated:
		return "invalidated"
	default:
		return "n" + itoa(int(id))
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}

// Data carries kind-specific payload for a PSNode, so a node is one
// tagged variant rather than one of a family of node types.
type Data interface {
	isPSNodeData()
}

// AllocData is the payload of an ALLOC node: its declared size in
// bytes (or Unknown) and an OnLoop flag. Nothing in this module sets
// OnLoop; loop membership is answered by PointerSubgraph.OnLoop.
type AllocData struct {
	Size   Offset
	OnLoop bool
}

func (AllocData) isPSNodeData() {}

// GlobalData is the payload of a GLOBAL node.
type GlobalData struct {
	Size Offset
}

func (GlobalData) isPSNodeData() {}

// GEPData is the payload of a GEP node: the structural offset added to
// the base operand's points-to set.
type GEPData struct {
	FieldOffset Offset
}

func (GEPData) isPSNodeData() {}

// LoadData is the payload of a LOAD node: the access width in bytes,
// or Unknown.
type LoadData struct {
	Size Offset
}

func (LoadData) isPSNodeData() {}

// StoreData is the payload of a STORE node: the access width in
// bytes, or Unknown. Operands are ordered [ptr, value].
type StoreData struct {
	Size Offset
}

func (StoreData) isPSNodeData() {}

// ConstantData is the payload of a CONSTANT node: a fixed pointer
// value {Target, Offset}.
type ConstantData struct {
	Target PSNodeID
	Offset Offset
}

func (ConstantData) isPSNodeData() {}

// MemcpyData is the payload of a MEMCPY node: the copy length, or
// Unknown if symbolic.
type MemcpyData struct {
	Len Offset
}

func (MemcpyData) isPSNodeData() {}

// FunctionData marks a node as the identity object of a function;
// CALL_FUNCPTR resolution looks for these in the callee operand's
// points-to set.
type FunctionData struct {
	Name string
}

func (FunctionData) isPSNodeData() {}

// PSNode is one node of the pointer graph.
type PSNode struct {
	ID       PSNodeID
	Kind     Kind
	Name     string // debugging only
	Operands []PSNodeID
	Preds    []PSNodeID
	Succs    []PSNodeID
	users    []PSNodeID
	PointsTo PointsToSet
	Pair     PSNodeID // CALL<->CALL_RETURN, RETURN<->CALL_RETURN, ENTRY<->exit
	Data     Data

	subgraph int // index into PointerGraph.subgraphs, or -1
	removed  bool
}

// Users returns the nodes that read this node as an operand.
func (n *PSNode) Users() []PSNodeID { return n.users }

// IsRemoved reports whether Remove has been called on this node.
func (n *PSNode) IsRemoved() bool { return n.removed }

func (n *PSNode) String() string {
	name := n.Name
	if name == "" {
		name = n.Kind.String()
	}
	return n.ID.String() + ":" + name
}
