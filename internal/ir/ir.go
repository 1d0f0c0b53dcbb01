// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package ir defines the Workflow intermediate representation (spec.md
// §3): a hybrid control-flow-graph / stack-machine model grounded on the
// execgraph package's Graph/CompiledGraph split, generalized from
// Terraform-plan-apply dependency edges to Brane's task/branch/parallel
// edge variants.
package ir

import "github.com/brane-org/brane/internal/diagnostics"

// MainFunc is the sentinel function index denoting the main graph,
// mirroring the "MAX" sentinel from spec.md §3.
const MainFunc = -1

// SymTable is the flat, indexed table of functions, tasks, classes, and
// variables valid in a given scope (spec.md §3). Every entity is
// addressed by its position in the relevant slice; references never
// escape to pointers.
type SymTable struct {
	Funcs   []FuncDef
	Tasks   []TaskDef
	Classes []ClassDef
	Vars    []VarDef

	// Results maps an intermediate-result identifier to the location
	// name where that result resides. Populated exclusively by the
	// planner (internal/plan).
	Results map[string]string
}

func NewSymTable() *SymTable {
	return &SymTable{Results: make(map[string]string)}
}

type FuncDef struct {
	Name       string
	Params     []Param
	ReturnType string

	// Locals is this function's nested variable table (spec.md §4.3).
	// Its indices continue from LocalsOffset rather than 0, so that
	// every variable index is unique program-wide even though each
	// function's locals are also stored densely from position 0 here.
	Locals       []VarDef
	LocalsOffset int
}

type Param struct {
	Name string
	Type string
}

// TaskKind distinguishes a Compute task (backed by a versioned package
// function) from the built-in Transfer task.
type TaskKind int

const (
	TaskCompute TaskKind = iota
	TaskTransfer
)

// TaskDef is an externally-implemented operation referenced by a Node
// edge. Transfer tasks have a fixed (Data, Data) -> Void signature.
type TaskDef struct {
	Kind         TaskKind
	Package      string
	Version      string
	Name         string
	ArgNames     []string
	ArgTypes     []string
	ReturnType   string
	Requirements []string // e.g. "cuda_gpu"
}

type PropertyDef struct {
	Name string
	Type string
}

type ClassDef struct {
	Name    string
	Package string // empty for user-defined, non-package classes
	Props   []PropertyDef
	Methods []int // indices into the enclosing SymTable's Funcs
}

type VarDef struct {
	Name string
	Type string
}

// DataNameKind distinguishes persistent Data from a workflow-local
// IntermediateResult (spec.md GLOSSARY).
type DataNameKind int

const (
	DataNameData DataNameKind = iota
	DataNameIntermediateResult
)

type DataName struct {
	Kind DataNameKind
	Name string
}

func Data(name string) DataName { return DataName{Kind: DataNameData, Name: name} }

func IntermediateResult(name string) DataName {
	return DataName{Kind: DataNameIntermediateResult, Name: name}
}

// AccessKind describes how to read a dataset locally. Currently only a
// filesystem path, per spec.md GLOSSARY.
type AccessKind struct {
	Path string
}

// PreprocessKind describes how to make a dataset local. Currently only
// tar-over-HTTPS from a registry.
type PreprocessKind struct {
	Location string
	Address  string
}

// AvailabilityKind records whether a Node's input is already local or
// must be fetched before execution (spec.md §3).
type AvailabilityKind struct {
	Available  bool
	Access     AccessKind     // valid iff Available
	Preprocess PreprocessKind // valid iff !Available
}

func Available(access AccessKind) AvailabilityKind {
	return AvailabilityKind{Available: true, Access: access}
}

func Unavailable(pre PreprocessKind) AvailabilityKind {
	return AvailabilityKind{Available: false, Preprocess: pre}
}

// MergeStrategy is the rule by which a Join reduces multiple parallel
// branch values into one (spec.md §3).
type MergeStrategy int

const (
	MergeFirst MergeStrategy = iota
	MergeFirstBlocking
	MergeLast
	MergeSum
	MergeProduct
	MergeMax
	MergeMin
	MergeAll
	MergeNone
)

func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	switch s {
	case "", "first":
		return MergeFirst, true
	case "first_blocking":
		return MergeFirstBlocking, true
	case "last":
		return MergeLast, true
	case "sum":
		return MergeSum, true
	case "product":
		return MergeProduct, true
	case "max":
		return MergeMax, true
	case "min":
		return MergeMin, true
	case "all":
		return MergeAll, true
	case "none":
		return MergeNone, true
	default:
		return 0, false
	}
}

func (m MergeStrategy) String() string {
	switch m {
	case MergeFirst:
		return "first"
	case MergeFirstBlocking:
		return "first_blocking"
	case MergeLast:
		return "last"
	case MergeSum:
		return "sum"
	case MergeProduct:
		return "product"
	case MergeMax:
		return "max"
	case MergeMin:
		return "min"
	case MergeAll:
		return "all"
	case MergeNone:
		return "none"
	default:
		return "unknown"
	}
}

// ---- EdgeInstr ----

type InstrOp int

const (
	OpCast InstrOp = iota
	OpPop
	OpPopMarker
	OpDynamicPop
	OpBranch   // operand: signed edge offset
	OpBranchNot
	OpNot
	OpNeg
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpArray   // operand: Len, Type
	OpArrayIndex
	OpInstance // operand: Class
	OpProj     // operand: Field
	OpVarDec   // operand: VarIdx
	OpVarGet   // operand: VarIdx
	OpVarSet   // operand: VarIdx
	OpBoolean  // operand: BoolVal
	OpInteger  // operand: IntVal
	OpReal     // operand: RealVal
	OpString   // operand: StrVal
	OpFunction // operand: FuncIdx
)

// EdgeInstr is a single scalar stack-machine instruction appearing
// inside a Linear edge. Only the fields relevant to Op are meaningful;
// this mirrors a tagged union via a flat struct, the same encoding
// approach the wire codec (internal/ir/wire) uses for JSON.
type EdgeInstr struct {
	Op      InstrOp
	Offset  int
	Len     int
	Type    string
	Class   int
	Field   string
	VarIdx  int
	BoolVal bool
	IntVal  int64
	RealVal float64
	StrVal  string
	FuncIdx int
}

// ---- Edge ----

type EdgeKind int

const (
	EdgeNode EdgeKind = iota
	EdgeLinear
	EdgeStop
	EdgeBranch
	EdgeParallel
	EdgeJoin
	EdgeLoop
	EdgeCall
	EdgeReturn
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeNode:
		return "node"
	case EdgeLinear:
		return "linear"
	case EdgeStop:
		return "stop"
	case EdgeBranch:
		return "branch"
	case EdgeParallel:
		return "parallel"
	case EdgeJoin:
		return "join"
	case EdgeLoop:
		return "loop"
	case EdgeCall:
		return "call"
	case EdgeReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Edge is a single node in the control-flow graph, addressed by its
// position in Workflow.Graph or Workflow.Funcs[i]. Only the fields
// relevant to Kind are populated (spec.md §3).
type Edge struct {
	Kind EdgeKind
	Rng  diagnostics.Range

	// Node
	Task   int
	Locs   []string // nil/empty means "any"
	At     string   // set by the planner
	Input  map[DataName]*AvailabilityKind
	Result string // empty means no result produced
	Next   int

	// Linear
	Instrs []EdgeInstr

	// Branch
	TrueNext  int
	FalseNext int
	Merge     int

	// Parallel
	Branches      []int
	MergeStrategy MergeStrategy

	// Join uses Merge (convergence/strategy index) and Next.

	// Loop
	Cond int
	Body int
}

// Workflow is the top-level planned artifact (spec.md §3).
type Workflow struct {
	Table *SymTable
	Graph []Edge
	Funcs map[int][]Edge
}

func NewWorkflow() *Workflow {
	return &Workflow{Table: NewSymTable(), Funcs: make(map[int][]Edge)}
}

// Func returns the edge sequence for fn, where MainFunc denotes main.
func (w *Workflow) Func(fn int) []Edge {
	if fn == MainFunc {
		return w.Graph
	}
	return w.Funcs[fn]
}
