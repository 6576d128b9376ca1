package runtime

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"

	"github.com/sable-lang/sable/internal/vm"
)

// Marshaller converts between Go values and runtime values.
type Marshaller struct {
	machine *vm.VM
}

func NewMarshaller(machine *vm.VM) *Marshaller {
	return &Marshaller{machine: machine}
}

// ToValue converts a Go value to a runtime value. Integers must fit the
// runtime's 32-bit integer representation; wider values become floats.
func (m *Marshaller) ToValue(val any) (vm.Value, error) {
	if val == nil {
		return vm.NilVal(), nil
	}
	if v, ok := val.(vm.Value); ok {
		return v, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return vm.FloatVal(float64(n)), nil
		}
		return vm.IntVal(int32(n)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return vm.FloatVal(float64(n)), nil
		}
		return vm.IntVal(int32(n)), nil
	case reflect.Float32, reflect.Float64:
		return vm.FloatVal(rv.Float()), nil
	case reflect.Bool:
		return vm.BoolVal(rv.Bool()), nil
	case reflect.String:
		return m.machine.InternValue(rv.String()), nil
	case reflect.Slice, reflect.Array:
		return m.sliceToArray(rv)
	case reflect.Map:
		return m.mapToMap(rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return vm.NilVal(), nil
		}
		return m.ToValue(rv.Elem().Interface())
	default:
		return m.machine.NewResource("go:"+rv.Type().String(), val), nil
	}
}

func (m *Marshaller) sliceToArray(rv reflect.Value) (vm.Value, error) {
	arr := m.machine.NewArrayValue()
	// Converting elements can allocate and collect; the array under
	// construction is not yet reachable from the VM's roots.
	m.machine.Protect(arr)
	defer m.machine.Unprotect(1)
	for i := 0; i < rv.Len(); i++ {
		item, err := m.ToValue(rv.Index(i).Interface())
		if err != nil {
			return vm.NilVal(), err
		}
		m.machine.ArrayAppend(arr, item)
	}
	return arr, nil
}

func (m *Marshaller) mapToMap(rv reflect.Value) (vm.Value, error) {
	out := m.machine.NewMapValue()
	m.machine.Protect(out)
	defer m.machine.Unprotect(1)
	iter := rv.MapRange()
	for iter.Next() {
		key, err := m.ToValue(iter.Key().Interface())
		if err != nil {
			return vm.NilVal(), err
		}
		m.machine.Protect(key)
		val, err := m.ToValue(iter.Value().Interface())
		if err != nil {
			m.machine.Unprotect(1)
			return vm.NilVal(), err
		}
		err = m.machine.MapSet(out, key, val)
		m.machine.Unprotect(1)
		if err != nil {
			return vm.NilVal(), err
		}
	}
	return out, nil
}

// FromValue converts a runtime value to its natural Go representation:
// int64, float64, bool, string, nil, []any, or map[any]any.
func (m *Marshaller) FromValue(v vm.Value) (any, error) {
	return m.machine.Export(v)
}

// FromValueAs converts a runtime value to a specific Go type for native
// call arguments.
func (m *Marshaller) FromValueAs(v vm.Value, target reflect.Type) (reflect.Value, error) {
	gov, err := m.FromValue(v)
	if err != nil {
		return reflect.Value{}, err
	}
	if gov == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(gov)
	if rv.Type() == target {
		return rv, nil
	}
	// ConvertibleTo alone would also admit int-to-string, which yields a
	// one-rune string rather than a digit string.
	if convertibleKinds(rv.Kind(), target.Kind()) && rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", gov, target)
}

func convertibleKinds(from, to reflect.Kind) bool {
	if from == to {
		return true
	}
	return numericKind(from) && numericKind(to)
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func evalFile(v *VM, path string) (any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v.machine.SetBaseDir(filepath.Dir(path))
	result, err := v.machine.RunSource(string(src), path)
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result)
}
