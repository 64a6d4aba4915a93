package ir

// DOF is a degree of freedom: an atomic named variable declared in a
// package. The orthogonal group tag is used for mutual-exclusivity
// checks. DOFs are referenced by nodes, never owned by them, and are
// immutable after package load.
type DOF struct {
	ID              string `json:"id"`
	OrthogonalGroup string `json:"orthogonal_group"`
}

// Compartment is a named stage. Index establishes a total order over
// compartments; diagrams and states belong to exactly one compartment.
type Compartment struct {
	ID    string `json:"id"`
	Index int64  `json:"index"`
}

// DOFPair is an ordered pair of DOF ids, serialized as a two-element
// JSON array.
type DOFPair [2]string

// CSI is a causal sphere of influence: the DOFs and DOF pairs permitted
// to interact within a scope. Immutable once created.
type CSI struct {
	ID           string    `json:"id"`
	AllowedDOFs  []string  `json:"allowed_dofs"`
	AllowedPairs []DOFPair `json:"allowed_pairs,omitempty"`
}

// AllowsDOF reports whether the DOF id is inside this sphere.
func (c *CSI) AllowsDOF(id string) bool {
	for _, d := range c.AllowedDOFs {
		if d == id {
			return true
		}
	}
	return false
}

// AllowsPair reports whether the ordered (from, to) DOF pair may
// interact. An empty pair list means pair checking is disabled.
func (c *CSI) AllowsPair(from, to string) bool {
	if len(c.AllowedPairs) == 0 {
		return true
	}
	for _, p := range c.AllowedPairs {
		if p[0] == from && p[1] == to {
			return true
		}
	}
	return false
}

// NodeMeta carries structurally significant metadata that is not part
// of the node's primary reference lists. Atom arguments of non-S±
// operators are preserved here rather than discarded, so export
// round-trips are lossless.
type NodeMeta struct {
	AtomArgs          []string `json:"atom_args,omitempty"`
	AtomOnly          bool     `json:"atom_only,omitempty"`
	TargetCompartment string   `json:"target_compartment,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m *NodeMeta) Clone() *NodeMeta {
	if m == nil {
		return nil
	}
	cp := *m
	cp.AtomArgs = append([]string(nil), m.AtomArgs...)
	return &cp
}

// Node is one vertex of a diagram. Leaf nodes reference one or more
// DOFs through DOFRefs; composite nodes reference ordered upstream
// nodes through Inputs. Collapse (O) nodes must carry Irreversible.
type Node struct {
	ID           string    `json:"id"`
	Op           Operator  `json:"op"`
	DOFRefs      []string  `json:"dof_refs,omitempty"`
	Inputs       []string  `json:"inputs,omitempty"`
	Irreversible bool      `json:"irreversible,omitempty"`
	Meta         *NodeMeta `json:"meta,omitempty"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	cp := n
	cp.DOFRefs = append([]string(nil), n.DOFRefs...)
	cp.Inputs = append([]string(nil), n.Inputs...)
	cp.Meta = n.Meta.Clone()
	return cp
}

// EdgeLabelArg is the uniform argument-edge label produced by the
// translator. Explicit labels supplied at construction are preserved
// verbatim and never overwritten with this default.
const EdgeLabelArg = "arg"

// Edge is one argument edge of a diagram, directed from the argument
// node to the operator node consuming it.
type Edge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// ConstraintKind partitions constraints by force. Hard constraints are
// eliminative and can force N; heuristic constraints are
// preference-only and can never force I or N.
type ConstraintKind string

const (
	KindHard      ConstraintKind = "hard"
	KindHeuristic ConstraintKind = "heuristic"
)

// Constraint scope selectors. ScopeDiagram and ScopeCSI constraints are
// evaluated once against the whole diagram; a scope of the form
// "node:<id>" restricts the predicate to a single element.
const (
	ScopeDiagram = "diagram"
	ScopeCSI     = "csi"
)

// Constraint is a named predicate over a structural scope.
type Constraint struct {
	ID        string         `json:"id"`
	Scope     string         `json:"scope"`
	Kind      ConstraintKind `json:"kind"`
	Predicate string         `json:"predicate"`
}

// RewriteRule is an immutable pattern/replacement pair. Applying a rule
// never mutates it.
type RewriteRule struct {
	ID              string   `json:"id"`
	PatternExpr     string   `json:"pattern_expr"`
	ReplacementExpr string   `json:"replacement_expr"`
	Preconditions   []string `json:"preconditions,omitempty"`
}

// IsIdentity reports whether the rule rewrites a pattern to itself.
func (r RewriteRule) IsIdentity() bool {
	return r.PatternExpr == r.ReplacementExpr
}

// ConflictRecord captures one resolved constraint conflict inside a
// State. Records are append-only; conflict-resolution procedures copy
// the state and append, they never mutate in place.
type ConflictRecord struct {
	Type         string   `json:"type"`
	ConstraintID string   `json:"constraint_id,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Elements     []string `json:"elements,omitempty"`
}

// Clone returns a deep copy of the record.
func (c ConflictRecord) Clone() ConflictRecord {
	cp := c
	cp.Elements = append([]string(nil), c.Elements...)
	return cp
}

// State binds a diagram to a CSI and compartment and carries the
// current ternary labels. INULabels is lazily initialized and must
// never be assumed present.
type State struct {
	ID            string             `json:"id"`
	DiagramID     string             `json:"diagram_id"`
	CSIID         string             `json:"csi_id"`
	CompartmentID string             `json:"compartment_id"`
	INULabels     map[string]Ternary `json:"inu_labels,omitempty"`

	// Conflict-resolution bookkeeping, appended by the pure resolution
	// procedures in the crf package.
	AttenuatedConstraints []string         `json:"attenuated_constraints,omitempty"`
	DeferredConflicts     []ConflictRecord `json:"deferred_conflicts,omitempty"`
	PartitionedElements   []string         `json:"partitioned_elements,omitempty"`
	EscalatedConflicts    []ConflictRecord `json:"escalated_conflicts,omitempty"`
	Bifurcated            bool             `json:"bifurcated,omitempty"`
	BifurcationChoices    []string         `json:"bifurcation_choices,omitempty"`
	Halted                bool             `json:"halted,omitempty"`
	HaltReason            string           `json:"halt_reason,omitempty"`

	// LabelHistory keeps recent label maps for loop-convergence checks.
	// Bounded by stability.MaxLabelHistory; not serialized.
	LabelHistory []map[string]Ternary `json:"-"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	cp := s
	if s.INULabels != nil {
		cp.INULabels = make(map[string]Ternary, len(s.INULabels))
		for k, v := range s.INULabels {
			cp.INULabels[k] = v
		}
	}
	cp.AttenuatedConstraints = append([]string(nil), s.AttenuatedConstraints...)
	cp.PartitionedElements = append([]string(nil), s.PartitionedElements...)
	cp.BifurcationChoices = append([]string(nil), s.BifurcationChoices...)
	if s.DeferredConflicts != nil {
		cp.DeferredConflicts = make([]ConflictRecord, len(s.DeferredConflicts))
		for i, r := range s.DeferredConflicts {
			cp.DeferredConflicts[i] = r.Clone()
		}
	}
	if s.EscalatedConflicts != nil {
		cp.EscalatedConflicts = make([]ConflictRecord, len(s.EscalatedConflicts))
		for i, r := range s.EscalatedConflicts {
			cp.EscalatedConflicts[i] = r.Clone()
		}
	}
	if s.LabelHistory != nil {
		cp.LabelHistory = make([]map[string]Ternary, len(s.LabelHistory))
		for i, labels := range s.LabelHistory {
			m := make(map[string]Ternary, len(labels))
			for k, v := range labels {
				m[k] = v
			}
			cp.LabelHistory[i] = m
		}
	}
	return cp
}

// Package is the persisted object model: every load-time fact plus the
// diagrams and states the pipeline operates on.
type Package struct {
	DOFs         []DOF         `json:"dofs"`
	Compartments []Compartment `json:"compartments"`
	CSIs         []CSI         `json:"csis"`
	Diagrams     []Diagram     `json:"diagrams"`
	States       []State       `json:"states"`
	Constraints  []Constraint  `json:"constraints,omitempty"`
	RewriteRules []RewriteRule `json:"rewrite_rules,omitempty"`
}

// FindDiagram returns the diagram with the given id, or nil.
func (p *Package) FindDiagram(id string) *Diagram {
	for i := range p.Diagrams {
		if p.Diagrams[i].ID == id {
			return &p.Diagrams[i]
		}
	}
	return nil
}

// FindState returns the state with the given id, or nil.
func (p *Package) FindState(id string) *State {
	for i := range p.States {
		if p.States[i].ID == id {
			return &p.States[i]
		}
	}
	return nil
}

// FindCSI returns the CSI with the given id, or nil.
func (p *Package) FindCSI(id string) *CSI {
	for i := range p.CSIs {
		if p.CSIs[i].ID == id {
			return &p.CSIs[i]
		}
	}
	return nil
}
