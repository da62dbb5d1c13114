// Package contract holds the request-level domain of the contract service:
// the closed set of contract types, request parsing, the error taxonomy and
// download filename rules.
package contract

import (
	"sort"
	"strings"
)

// Type identifies a contract template family
type Type string

const (
	TypeDoctorado    Type = "doctorado"
	TypeMaestria     Type = "maestria"
	TypeLicenciatura Type = "licenciatura"
	TypeMasterPropio Type = "master_propio"
)

// Request keys with special meaning
const (
	KeyContractType = "contract_type"
	KeyStudentName  = "nombre_apellidos"
)

var allTypes = []Type{TypeDoctorado, TypeMaestria, TypeLicenciatura, TypeMasterPropio}

// AllTypes returns the closed set of contract types in a stable order
func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseType normalizes raw (trim + lower-case) and checks membership in the closed set
func ParseType(raw string) (Type, error) {
	key := Type(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range allTypes {
		if t == key {
			return t, nil
		}
	}
	return "", NewInvalidContractType(raw, AllTypes())
}

// IsKnown reports whether t belongs to the closed set
func (t Type) IsKnown() bool {
	for _, known := range allTypes {
		if known == t {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	return string(t)
}
