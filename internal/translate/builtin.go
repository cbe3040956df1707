package translate

import (
	"strconv"

	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
)

// builtinMapping is the fixed fundamental type table. Kinds missing from it
// have no Jakt equivalent.
var builtinMapping = map[decl.BuiltinKind]string{
	decl.Void:      "void",
	decl.Bool:      "bool",
	decl.Char:      "c_char",
	decl.SChar:     "i8",
	decl.UChar:     "u8",
	decl.WChar:     "i32",
	decl.Char8:     "u8",
	decl.Char16:    "u16",
	decl.Char32:    "u32",
	decl.Short:     "i16",
	decl.UShort:    "u16",
	decl.Int:       "c_int",
	decl.UInt:      "u32",
	decl.Long:      "i64",
	decl.ULong:     "u64",
	decl.LongLong:  "i64",
	decl.ULongLong: "u64",
	decl.Int8:      "i8",
	decl.Int16:     "i16",
	decl.Int32:     "i32",
	decl.Int64:     "i64",
	decl.UInt8:     "u8",
	decl.UInt16:    "u16",
	decl.UInt32:    "u32",
	decl.UInt64:    "u64",
	decl.Size:      "usize",
	decl.SSize:     "i64",
	decl.Float:     "f32",
	decl.Double:    "f64",
	decl.NullPtr:   "raw void",
}

func builtin(k decl.BuiltinKind) (string, error) {
	if s, ok := builtinMapping[k]; ok {
		return s, nil
	}
	return "", diag.Fatalf(diag.ErrUnsupportedBuiltin, "builtin type %s has no Jakt equivalent", k)
}

func itoa(i int) string { return strconv.Itoa(i) }
