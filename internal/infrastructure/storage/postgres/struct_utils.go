package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns every column named by a "db" tag, joined
// read-only columns included. Embedded structs are walked recursively.
//
// Usage:
//
//	columns := ExtractDBColumns[payment.Payment]()
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero), false)
}

// WritableColumns returns the "db" columns that are persisted on insert,
// skipping fields tagged write:"-".
func WritableColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero), true)
}

func columnsOf(t reflect.Type, writableOnly bool) []string {
	meta := getOrCreateTypeMetadata(t)
	var cols []string
	for _, fi := range meta.fields {
		if writableOnly && fi.readOnly {
			continue
		}
		cols = append(cols, fi.dbTag)
	}
	for _, embIdx := range meta.embeddedIndices {
		cols = append(cols, columnsOf(derefType(t).Field(embIdx).Type, writableOnly)...)
	}
	return cols
}

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index    int
	dbTag    string
	readOnly bool // write:"-": populated by joins, never inserted
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields          []fieldInfo
	embeddedIndices []int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func derefType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// getOrCreateTypeMetadata returns cached metadata or creates it if not exists.
func getOrCreateTypeMetadata(t reflect.Type) *typeMetadata {
	t = derefType(t)

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() != reflect.Struct {
		typeCache.Store(t, meta)
		return meta
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			meta.embeddedIndices = append(meta.embeddedIndices, i)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		meta.fields = append(meta.fields, fieldInfo{
			index:    i,
			dbTag:    tag,
			readOnly: field.Tag.Get("write") == "-",
		})
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to an insert map using "db" tags.
// Untagged, db:"-" and write:"-" fields are left out.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := getOrCreateTypeMetadata(rv.Type())
	res := make(map[string]any, len(meta.fields))

	for _, fi := range meta.fields {
		if fi.readOnly {
			continue
		}
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}

	for _, embIdx := range meta.embeddedIndices {
		for k, v := range StructToMap(rv.Field(embIdx).Interface()) {
			res[k] = v
		}
	}

	return res
}
