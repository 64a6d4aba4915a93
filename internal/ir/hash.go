package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints. The version
// suffix leaves room for algorithm migration without colliding with
// old fingerprints.
const (
	DomainDiagram = "sid/diagram/v1"
	DomainState   = "sid/state/v1"
	DomainPackage = "sid/package/v1"
	DomainRewrite = "sid/rewrite/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DiagramFingerprint computes a content-addressed fingerprint of the
// diagram structure. Two diagrams with the same nodes and edges in the
// same order have the same fingerprint regardless of how they were
// built.
func DiagramFingerprint(d *Diagram) (string, error) {
	nodes := make(Arr, len(d.Nodes))
	for i := range d.Nodes {
		n := &d.Nodes[i]
		obj := Obj{
			"id": Str(n.ID),
			"op": Str(string(n.Op)),
		}
		if len(n.DOFRefs) > 0 {
			obj["dof_refs"] = StrArr(n.DOFRefs)
		}
		if len(n.Inputs) > 0 {
			obj["inputs"] = StrArr(n.Inputs)
		}
		if n.Irreversible {
			obj["irreversible"] = Bool(true)
		}
		if n.Meta != nil {
			meta := Obj{}
			if len(n.Meta.AtomArgs) > 0 {
				meta["atom_args"] = StrArr(n.Meta.AtomArgs)
			}
			if n.Meta.AtomOnly {
				meta["atom_only"] = Bool(true)
			}
			if n.Meta.TargetCompartment != "" {
				meta["target_compartment"] = Str(n.Meta.TargetCompartment)
			}
			if len(meta) > 0 {
				obj["meta"] = meta
			}
		}
		nodes[i] = obj
	}

	edges := make(Arr, len(d.Edges))
	for i := range d.Edges {
		e := &d.Edges[i]
		edges[i] = Obj{
			"id":    Str(e.ID),
			"from":  Str(e.From),
			"to":    Str(e.To),
			"label": Str(e.Label),
		}
	}

	doc := Obj{
		"id":          Str(d.ID),
		"compartment": Str(d.CompartmentID),
		"nodes":       nodes,
		"edges":       edges,
	}
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("diagram fingerprint: %w", err)
	}
	return hashWithDomain(DomainDiagram, canonical), nil
}

// StateFingerprint computes a content-addressed fingerprint of a state,
// including its labels and conflict-resolution bookkeeping. Label
// history is transient and excluded.
func StateFingerprint(s *State) (string, error) {
	doc := Obj{
		"id":          Str(s.ID),
		"diagram":     Str(s.DiagramID),
		"csi":         Str(s.CSIID),
		"compartment": Str(s.CompartmentID),
	}
	if len(s.INULabels) > 0 {
		labels := make(Obj, len(s.INULabels))
		for k, v := range s.INULabels {
			labels[k] = Str(string(v))
		}
		doc["labels"] = labels
	}
	if len(s.AttenuatedConstraints) > 0 {
		doc["attenuated"] = StrArr(s.AttenuatedConstraints)
	}
	if len(s.PartitionedElements) > 0 {
		doc["partitioned"] = StrArr(s.PartitionedElements)
	}
	if s.Halted {
		doc["halted"] = Bool(true)
		doc["halt_reason"] = Str(s.HaltReason)
	}
	if s.Bifurcated {
		doc["bifurcated"] = Bool(true)
		doc["bifurcation_choices"] = StrArr(s.BifurcationChoices)
	}
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("state fingerprint: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// PackageFingerprint computes a fingerprint over all diagram
// fingerprints of a package, in declaration order. The store uses it
// for replay verification.
func PackageFingerprint(p *Package) (string, error) {
	diagrams := make(Arr, len(p.Diagrams))
	for i := range p.Diagrams {
		fp, err := DiagramFingerprint(&p.Diagrams[i])
		if err != nil {
			return "", err
		}
		diagrams[i] = Str(fp)
	}
	canonical, err := MarshalCanonical(Obj{"diagrams": diagrams})
	if err != nil {
		return "", fmt.Errorf("package fingerprint: %w", err)
	}
	return hashWithDomain(DomainPackage, canonical), nil
}

// RewriteFingerprint identifies one rewrite application for the audit
// log: rule, site, and the resulting diagram fingerprint.
func RewriteFingerprint(ruleID, siteNodeID, resultDiagramFP string) string {
	canonical, err := MarshalCanonical(Obj{
		"rule":   Str(ruleID),
		"site":   Str(siteNodeID),
		"result": Str(resultDiagramFP),
	})
	if err != nil {
		// All inputs are plain strings; canonical marshal cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainRewrite, canonical)
}

// MustDiagramFingerprint is DiagramFingerprint for inputs known valid.
func MustDiagramFingerprint(d *Diagram) string {
	fp, err := DiagramFingerprint(d)
	if err != nil {
		panic(err)
	}
	return fp
}
