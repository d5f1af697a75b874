package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// scanner maps SQL rows onto structs by reflection. Field metadata is
// cached per struct type behind a read-write mutex, so the reflect walk
// happens once per type for the life of the process.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

type structInfo struct {
	fields []*fieldInfo
}

type fieldInfo struct {
	index  []int
	dbName string
}

var globalScanner = &scanner{cache: make(map[reflect.Type]*structInfo)}

func (s *scanner) getStructInfo(typ reflect.Type) (*structInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok = s.cache[typ]; ok {
		return info, nil
	}
	info = &structInfo{}
	if err := buildStructInfo(typ, nil, info); err != nil {
		return nil, err
	}
	s.cache[typ] = info
	return info, nil
}

func buildStructInfo(typ reflect.Type, parent []int, info *structInfo) error {
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", typ.Kind())
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		index := append(append([]int{}, parent...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := buildStructInfo(field.Type, index, info); err != nil {
				return err
			}
			continue
		}

		dbName := field.Tag.Get("db")
		if dbName == "-" {
			continue
		}
		if dbName == "" {
			dbName = snakeCase(field.Name)
		}
		info.fields = append(info.fields, &fieldInfo{index: index, dbName: strings.ToLower(dbName)})
	}
	return nil
}

// snakeCase converts an exported field name to its column form:
// FirstName to first_name, UserID to user_id.
func snakeCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				sb.WriteRune('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// scanRow scans the current row into dest, a pointer to a struct.
// Columns with no matching field are discarded.
func (s *scanner) scanRow(rows *sql.Rows, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer, got %T", dest)
	}
	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("destination must point to a struct, got %T", dest)
	}

	info, err := s.getStructInfo(elem.Type())
	if err != nil {
		return err
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	fieldFor := make(map[string]*fieldInfo, len(info.fields))
	for _, f := range info.fields {
		fieldFor[f.dbName] = f
	}

	targets := make([]any, len(cols))
	var discard any
	for i, col := range cols {
		f, ok := fieldFor[strings.ToLower(col)]
		if !ok {
			targets[i] = &discard
			continue
		}
		targets[i] = elem.FieldByIndex(f.index).Addr().Interface()
	}
	return rows.Scan(targets...)
}

// scanRows scans every row into dest, a pointer to a slice of structs or
// struct pointers.
func (s *scanner) scanRows(rows *sql.Rows, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer to a slice, got %T", dest)
	}
	slice := v.Elem()
	if slice.Kind() != reflect.Slice {
		return fmt.Errorf("destination must point to a slice, got %T", dest)
	}

	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("slice elements must be structs, got %s", elemType.Kind())
	}

	for rows.Next() {
		elem := reflect.New(elemType)
		if err := s.scanRow(rows, elem.Interface()); err != nil {
			return err
		}
		if isPtr {
			slice.Set(reflect.Append(slice, elem))
		} else {
			slice.Set(reflect.Append(slice, elem.Elem()))
		}
	}
	return rows.Err()
}
