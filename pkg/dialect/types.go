package dialect

import (
	"strconv"
	"strings"
)

// NormalizedType is the engine-independent column type.
type NormalizedType string

const (
	TypeInt      NormalizedType = "int"
	TypeString   NormalizedType = "string"
	TypeDatetime NormalizedType = "datetime"
	TypeFloat    NormalizedType = "float"
	TypeBool     NormalizedType = "bool"
	TypeJSON     NormalizedType = "json"
)

// NormalizedTypes lists every NormalizedType.
var NormalizedTypes = []NormalizedType{TypeInt, TypeString, TypeDatetime, TypeFloat, TypeBool, TypeJSON}

// NormalizeType maps an engine-native type name to a NormalizedType.
// Length, precision and modifiers are ignored; unknown types are strings.
func (d Descriptor) NormalizeType(raw string) NormalizedType {
	base, args := splitType(raw)
	if base == "" || strings.HasSuffix(base, "[]") {
		return TypeString
	}
	if d.NumberScale && base == "number" && args != "" {
		if scaleIsZero(args) {
			return TypeInt
		}
		return TypeFloat
	}
	if t, ok := d.Types[base]; ok {
		return t
	}
	if i := strings.IndexByte(base, ' '); i > 0 {
		if t, ok := d.Types[base[:i]]; ok {
			return t
		}
	}
	return TypeString
}

// splitType lowercases raw, strips every parenthesised group and known
// modifiers, and returns the first group's content separately.
func splitType(raw string) (base, args string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b, first strings.Builder
	depth, groups := 0, 0
	for _, r := range s {
		switch {
		case r == '(':
			if depth == 0 {
				groups++
			}
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			if groups == 1 {
				first.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	args = strings.TrimSpace(first.String())
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if f == "unsigned" || f == "zerofill" || f == "signed" {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " "), args
}

func scaleIsZero(args string) bool {
	parts := strings.Split(args, ",")
	if len(parts) < 2 {
		return true
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	return err == nil && scale == 0
}

var mysqlTypes = map[string]NormalizedType{
	"tinyint": TypeInt, "smallint": TypeInt, "mediumint": TypeInt, "int": TypeInt,
	"integer": TypeInt, "bigint": TypeInt, "year": TypeInt,
	"bit": TypeBool, "bool": TypeBool, "boolean": TypeBool,
	"decimal": TypeFloat, "numeric": TypeFloat, "float": TypeFloat, "double": TypeFloat,
	"double precision": TypeFloat, "real": TypeFloat,
	"date": TypeDatetime, "datetime": TypeDatetime, "timestamp": TypeDatetime, "time": TypeDatetime,
	"char": TypeString, "varchar": TypeString, "tinytext": TypeString, "text": TypeString,
	"mediumtext": TypeString, "longtext": TypeString, "enum": TypeString, "set": TypeString,
	"json": TypeJSON,
}

var postgresTypes = map[string]NormalizedType{
	"smallint": TypeInt, "integer": TypeInt, "int": TypeInt, "bigint": TypeInt,
	"int2": TypeInt, "int4": TypeInt, "int8": TypeInt,
	"smallserial": TypeInt, "serial": TypeInt, "bigserial": TypeInt,
	"serial2": TypeInt, "serial4": TypeInt, "serial8": TypeInt,
	"numeric": TypeFloat, "decimal": TypeFloat, "real": TypeFloat, "double precision": TypeFloat,
	"float4": TypeFloat, "float8": TypeFloat, "money": TypeFloat,
	"boolean": TypeBool, "bool": TypeBool,
	"date": TypeDatetime, "time": TypeDatetime, "timetz": TypeDatetime,
	"timestamp": TypeDatetime, "timestamptz": TypeDatetime,
	"json": TypeJSON, "jsonb": TypeJSON,
	"character varying": TypeString, "varchar": TypeString, "character": TypeString,
	"char": TypeString, "bpchar": TypeString, "text": TypeString, "uuid": TypeString,
}

// gaussTypes extends the PostgreSQL table with openGauss' Oracle-compatible
// names.
var gaussTypes = extend(postgresTypes, map[string]NormalizedType{
	"number": TypeFloat, "varchar2": TypeString, "nvarchar2": TypeString,
	"clob": TypeString, "raw": TypeString, "tinyint": TypeInt,
	"smalldatetime": TypeDatetime, "binary_double": TypeFloat,
})

var kingbaseTypes = extend(postgresTypes, map[string]NormalizedType{
	"number": TypeFloat, "varchar2": TypeString, "nvarchar2": TypeString,
	"clob": TypeString, "raw": TypeString, "long": TypeString,
	"binary_double": TypeFloat, "binary_float": TypeFloat,
	"tinyint": TypeInt, "datetime": TypeDatetime,
})

var sqlserverTypes = map[string]NormalizedType{
	"tinyint": TypeInt, "smallint": TypeInt, "int": TypeInt, "bigint": TypeInt,
	"bit":     TypeBool,
	"decimal": TypeFloat, "numeric": TypeFloat, "money": TypeFloat, "smallmoney": TypeFloat,
	"float": TypeFloat, "real": TypeFloat,
	"date": TypeDatetime, "datetime": TypeDatetime, "datetime2": TypeDatetime,
	"smalldatetime": TypeDatetime, "datetimeoffset": TypeDatetime, "time": TypeDatetime,
	"char": TypeString, "varchar": TypeString, "nchar": TypeString, "nvarchar": TypeString,
	"text": TypeString, "ntext": TypeString, "uniqueidentifier": TypeString, "xml": TypeString,
}

var oracleTypes = map[string]NormalizedType{
	"number": TypeFloat, "integer": TypeInt, "int": TypeInt, "smallint": TypeInt,
	"float": TypeFloat, "binary_float": TypeFloat, "binary_double": TypeFloat,
	"decimal": TypeFloat, "numeric": TypeFloat, "real": TypeFloat,
	"date": TypeDatetime, "timestamp": TypeDatetime,
	"varchar2": TypeString, "nvarchar2": TypeString, "char": TypeString, "nchar": TypeString,
	"clob": TypeString, "nclob": TypeString, "long": TypeString, "varchar": TypeString,
	"json": TypeJSON,
}

var dmTypes = extend(oracleTypes, map[string]NormalizedType{
	"bigint": TypeInt, "tinyint": TypeInt, "byte": TypeInt,
	"double": TypeFloat, "datetime": TypeDatetime, "time": TypeDatetime,
	"text": TypeString, "character": TypeString,
	"bit": TypeBool, "boolean": TypeBool,
})

func extend(base, extra map[string]NormalizedType) map[string]NormalizedType {
	out := make(map[string]NormalizedType, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
