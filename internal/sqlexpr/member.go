package sqlexpr

import "strings"

// ProjectionMember is an immutable ordered path of member names
// identifying one logical position in the result shape. Two members
// are equal iff their paths are equal element-wise.
type ProjectionMember struct {
	path []string
}

// RootMember is the empty path: the query result itself.
func RootMember() ProjectionMember {
	return ProjectionMember{}
}

// Append derives a member one level deeper. The receiver is unchanged.
func (m ProjectionMember) Append(name string) ProjectionMember {
	path := make([]string, len(m.path), len(m.path)+1)
	copy(path, m.path)
	return ProjectionMember{path: append(path, name)}
}

// Path returns the member names root-first.
func (m ProjectionMember) Path() []string { return m.path }

// Last returns the final path segment, or "" for the root member.
func (m ProjectionMember) Last() string {
	if len(m.path) == 0 {
		return ""
	}
	return m.path[len(m.path)-1]
}

// Equal reports element-wise path equality.
func (m ProjectionMember) Equal(other ProjectionMember) bool {
	if len(m.path) != len(other.path) {
		return false
	}
	for i := range m.path {
		if m.path[i] != other.path[i] {
			return false
		}
	}
	return true
}

// Key returns the canonical dotted form used as a map key. Dots and
// backslashes inside a segment are escaped so distinct paths never
// share a key, matching the element-wise equality contract.
func (m ProjectionMember) Key() string {
	escaped := make([]string, len(m.path))
	for i, seg := range m.path {
		seg = strings.ReplaceAll(seg, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(seg, ".", `\.`)
	}
	return strings.Join(escaped, ".")
}

// String returns the member for diagnostics; the root member prints
// as "(root)".
func (m ProjectionMember) String() string {
	if len(m.path) == 0 {
		return "(root)"
	}
	return m.Key()
}

// ProjectionMapping maps projection members to the expression (or
// nested entity shape) that produces them. Entries keep insertion
// order so projection finalization is deterministic.
//
// A lookup miss is a translation bug upstream, not a recoverable
// condition: every member the shaper references must have been entered
// during translation.
type ProjectionMapping struct {
	keys    []string
	entries map[string]mappingEntry
}

type mappingEntry struct {
	member ProjectionMember
	expr   Expression
}

// NewProjectionMapping creates an empty mapping.
func NewProjectionMapping() *ProjectionMapping {
	return &ProjectionMapping{entries: make(map[string]mappingEntry)}
}

// Set adds or replaces the expression for a member.
func (pm *ProjectionMapping) Set(member ProjectionMember, expr Expression) {
	key := member.Key()
	if _, exists := pm.entries[key]; !exists {
		pm.keys = append(pm.keys, key)
	}
	pm.entries[key] = mappingEntry{member: member, expr: expr}
}

// Get returns the expression for a member. A miss is a
// MISSING_PROJECTION translation error.
func (pm *ProjectionMapping) Get(member ProjectionMember) (Expression, error) {
	entry, ok := pm.entries[member.Key()]
	if !ok {
		return nil, &TranslationError{
			Code:    ErrCodeMissingProjection,
			Message: "no projection mapped for member",
			Member:  member.String(),
		}
	}
	return entry.expr, nil
}

// Members returns the mapped members in insertion order.
func (pm *ProjectionMapping) Members() []ProjectionMember {
	out := make([]ProjectionMember, 0, len(pm.keys))
	for _, k := range pm.keys {
		out = append(out, pm.entries[k].member)
	}
	return out
}

// Len returns the number of entries.
func (pm *ProjectionMapping) Len() int { return len(pm.keys) }

func (pm *ProjectionMapping) clone() *ProjectionMapping {
	out := &ProjectionMapping{
		keys:    append([]string(nil), pm.keys...),
		entries: make(map[string]mappingEntry, len(pm.entries)),
	}
	for k, v := range pm.entries {
		out.entries[k] = v
	}
	return out
}
