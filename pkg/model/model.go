// Package model defines the schema document produced by scanning a
// backend-function project: the function namespace tree, table definitions,
// and the snapshot that bundles them for publication.
package model

import "time"

// FunctionKind classifies a callable by its declaration keyword.
type FunctionKind string

const (
	KindQuery    FunctionKind = "query"
	KindMutation FunctionKind = "mutation"
	KindAction   FunctionKind = "action"
)

// ArgumentDescriptor describes one declared parameter of a callable.
// PrimitiveType is a coarse tag taken from the validator call in source
// (e.g. "string", "id", "number"), not a full type expression.
type ArgumentDescriptor struct {
	Name          string   `json:"name"`
	PrimitiveType string   `json:"primitiveType"`
	Optional      bool     `json:"optional"`
	Description   string   `json:"description,omitempty"`
	EnumValues    []string `json:"enumValues,omitempty"`
}

// FunctionDescriptor is the extracted metadata for one callable.
// FullPath is the module path and function name joined by ":" and is the
// global identity key for the callable across scans.
type FunctionDescriptor struct {
	Name       string               `json:"name"`
	FullPath   string               `json:"fullPath"`
	Kind       FunctionKind         `json:"kind"`
	Arguments  []ArgumentDescriptor `json:"arguments"`
	ReturnHint string               `json:"returnHint,omitempty"`
}

// ModuleNode is one entry in the function namespace tree: a file (leaf,
// holds functions) or a directory (holds children). A child's Path is
// always parent.Path + "/" + child.Name; at the root it is the bare name.
type ModuleNode struct {
	Name      string               `json:"name"`
	Path      string               `json:"path"`
	Functions []FunctionDescriptor `json:"functions"`
	Children  []ModuleNode         `json:"children"`
}

// FieldDescriptor describes one declared field of a storage table.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// TableDescriptor describes one declared storage table. Fields may be
// empty when field-level extraction found nothing usable.
type TableDescriptor struct {
	Name   string            `json:"name"`
	Fields []FieldDescriptor `json:"fields"`
}

// Snapshot is one immutable, fully formed schema document. It is always
// replaced wholesale and never mutated after installation; every consumer
// holds a read-only reference.
type Snapshot struct {
	Modules     []ModuleNode      `json:"modules"`
	Tables      []TableDescriptor `json:"tables"`
	LastUpdated time.Time         `json:"lastUpdated"`
	CommitSHA   string            `json:"commitSha,omitempty"`
}

// FunctionCount returns the total number of functions in the snapshot,
// summed over the whole module tree.
func (s *Snapshot) FunctionCount() int {
	total := 0
	for i := range s.Modules {
		total += countFunctions(&s.Modules[i])
	}
	return total
}

func countFunctions(n *ModuleNode) int {
	total := len(n.Functions)
	for i := range n.Children {
		total += countFunctions(&n.Children[i])
	}
	return total
}

// FindModule returns the node with the given path, searching depth-first,
// or nil if no such module exists.
func FindModule(nodes []ModuleNode, path string) *ModuleNode {
	for i := range nodes {
		if nodes[i].Path == path {
			return &nodes[i]
		}
		if found := FindModule(nodes[i].Children, path); found != nil {
			return found
		}
	}
	return nil
}
