// Package wire defines the BoundaryMessage protocol spoken across the
// isolation boundary, in both directions.
//
// Wire shape:
//
//	{"type": "log",              "message": "a b"}
//	{"type": "error",            "message": "ReferenceError: x is not defined"}
//	{"type": "INSPECT_ON"}
//	{"type": "INSPECT_OFF"}
//	{"type": "ELEMENT_SELECTED", "message": {"tag": "p", "id": "x", "className": "y z", "styles": "—"}}
//
// Decoding never rejects an unknown type: the message decodes with
// Known() == false and receivers drop it.
package wire
