package wire

import "strings"

// Tag is the small-integer category identifier of a wire type. The tag
// names double as the "codec" names in introspection descriptors, so they
// are part of the public contract and must not change.
type Tag uint8

const (
	TagInvalid Tag = iota
	TagBoolean
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagString
	TagObject
	TagArray
	TagDict
	TagVariant
)

var tagNames = map[Tag]string{
	TagInvalid: "invalid",
	TagBoolean: "boolean",
	TagUint8:   "uint8",
	TagInt16:   "int16",
	TagUint16:  "uint16",
	TagInt32:   "int32",
	TagUint32:  "uint32",
	TagInt64:   "int64",
	TagUint64:  "uint64",
	TagString:  "string",
	TagObject:  "object",
	TagArray:   "array",
	TagDict:    "dict",
	TagVariant: "variant",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "invalid"
}

// Signature characters, fixed for interoperability with message-bus style
// wire formats. Composite signatures derive from these recursively:
// "a"+elem for sequences, "a{"+key+val+"}" for mappings.
const (
	sigBoolean = "b"
	sigUint8   = "y"
	sigInt16   = "n"
	sigUint16  = "q"
	sigInt32   = "i"
	sigUint32  = "u"
	sigInt64   = "x"
	sigUint64  = "t"
	sigString  = "s"
	sigObject  = "o"
	sigVariant = "v"
	sigArray   = "a"
)

// TagOfSignature maps a wire signature back to its type tag. Used to report
// the actual tag in mismatch errors; unknown signatures map to TagInvalid.
func TagOfSignature(sig string) Tag {
	if sig == "" {
		return TagInvalid
	}
	if strings.HasPrefix(sig, sigArray) {
		if strings.HasPrefix(sig, sigArray+"{") {
			return TagDict
		}
		return TagArray
	}
	switch sig[:1] {
	case sigBoolean:
		return TagBoolean
	case sigUint8:
		return TagUint8
	case sigInt16:
		return TagInt16
	case sigUint16:
		return TagUint16
	case sigInt32:
		return TagInt32
	case sigUint32:
		return TagUint32
	case sigInt64:
		return TagInt64
	case sigUint64:
		return TagUint64
	case sigString:
		return TagString
	case sigObject:
		return TagObject
	case sigVariant:
		return TagVariant
	}
	return TagInvalid
}
