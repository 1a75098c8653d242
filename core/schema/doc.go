/*
Package schema defines the YASL schema model and builds it from a raw
YAML document.

A schema document declares namespaces under a `definitions` root; each
namespace owns types and enums:

	definitions:
	  core:
	    types:
	      Project:
	        properties:
	          id:       { type: str, unique: true, presence: required }
	          name:     { type: str, str_min: 3 }
	          status:   Status
	          lead:     ref[Person]
	          budget:   { type: float, ge: 0 }
	          distance: { type: length, lt: 40000 km }
	          tags:     list[str]
	        validators:
	          - at_least_one: [name, tags]
	          - if_then:
	              eval: status
	              value: [active]
	              present: [lead]
	    enums:
	      Status: [draft, active, done]

Property type expressions are a closed set: the primitive scalars (str,
int, float, bool, date, time, datetime, uuid), the physical-quantity
dimensions (length, mass, duration, velocity, temperature, frequency,
angle, area, volume, pressure, energy, power, voltage, current,
resistance, data), enum and type names (own namespace first, or
dot-qualified), list[T], map[K,V] and ref[T].

Build resolves nothing across namespaces; it produces an immutable
Model with every definition carrying its document position. Name
resolution is a separate pass (package resolve). Structural problems
found during build are accumulated into a single *BuildError so the
`yasl schema` command can report them all at once.
*/
package schema
