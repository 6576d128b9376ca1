package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator and access helpers shared by the dispatch loop. The integer
// fast paths live in the loop itself; everything here is the slow path.

// valuesEqual compares by content for strings (long strings bypass the
// intern pool, so handle identity alone is not enough) and defers to
// Value.Equals for everything else.
func (vm *VM) valuesEqual(b, c Value) bool {
	if b.IsObj() && c.IsObj() {
		hb, hc := b.AsHandle(), c.AsHandle()
		if vm.heap.kind(hb) == KindString && vm.heap.kind(hc) == KindString {
			return hb == hc || vm.heap.str(hb).Chars == vm.heap.str(hc).Chars
		}
	}
	return b.Equals(c)
}

// addValues handles + when either operand is not a small integer:
// string concatenation when either side is a string, float arithmetic
// when both are numbers.
func (vm *VM) addValues(b, c Value) (Value, error) {
	if vm.isString(b) || vm.isString(c) {
		s := vm.stringify(b) + vm.stringify(c)
		return ObjVal(vm.internString(s)), nil
	}
	if b.IsNumber() && c.IsNumber() {
		return FloatVal(b.AsNumber() + c.AsNumber()), nil
	}
	return NilVal(), vm.runtimeError(errBadOperand, "cannot add %s and %s", vm.typeName(b), vm.typeName(c))
}

// arithValues handles - * / on mixed numeric operands.
func (vm *VM) arithValues(op string, b, c Value) (Value, error) {
	if !b.IsNumber() || !c.IsNumber() {
		return NilVal(), vm.runtimeError(errBadOperand, "operands of %s must be numbers", op)
	}
	x, y := b.AsNumber(), c.AsNumber()
	switch op {
	case "-":
		return FloatVal(x - y), nil
	case "*":
		return FloatVal(x * y), nil
	default:
		if y == 0 {
			return NilVal(), vm.runtimeError(errDivisionByZero, "%g / 0", x)
		}
		return FloatVal(x / y), nil
	}
}

// compareValues handles the ordering operators. Numbers order
// numerically, strings lexicographically.
func (vm *VM) compareValues(op Opcode, b, c Value) (Value, error) {
	if b.IsNumber() && c.IsNumber() {
		x, y := b.AsNumber(), c.AsNumber()
		switch op {
		case OP_LT:
			return BoolVal(x < y), nil
		case OP_LE:
			return BoolVal(x <= y), nil
		case OP_GT:
			return BoolVal(x > y), nil
		default:
			return BoolVal(x >= y), nil
		}
	}
	if vm.isString(b) && vm.isString(c) {
		x := vm.heap.str(b.AsHandle()).Chars
		y := vm.heap.str(c.AsHandle()).Chars
		switch op {
		case OP_LT:
			return BoolVal(x < y), nil
		case OP_LE:
			return BoolVal(x <= y), nil
		case OP_GT:
			return BoolVal(x > y), nil
		default:
			return BoolVal(x >= y), nil
		}
	}
	return NilVal(), vm.runtimeError(errBadOperand, "cannot order %s and %s", vm.typeName(b), vm.typeName(c))
}

func (vm *VM) isString(v Value) bool {
	return v.IsObj() && vm.heap.kind(v.AsHandle()) == KindString
}

// stringify is the canonical conversion used by concatenation: decimal
// integers, %g floats, the words true/false/nil, raw string contents.
func (vm *VM) stringify(v Value) string {
	switch {
	case v.IsInt():
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case v.IsFloat():
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNil():
		return "nil"
	case vm.isString(v):
		return vm.heap.str(v.AsHandle()).Chars
	default:
		return vm.formatValue(v)
	}
}

// formatValue renders any value for print output.
func (vm *VM) formatValue(v Value) string {
	if !v.IsObj() {
		return vm.stringify(v)
	}
	hd := v.AsHandle()
	switch vm.heap.kind(hd) {
	case KindString:
		return vm.heap.str(hd).Chars
	case KindArray:
		var b strings.Builder
		b.WriteByte('[')
		for i, item := range vm.heap.array(hd).Items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(vm.inspectValue(item))
		}
		b.WriteByte(']')
		return b.String()
	case KindMap:
		m := vm.heap.mapObj(hd)
		var b strings.Builder
		b.WriteByte('{')
		first := true
		for k, item := range m.Int {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%d: %s", k, vm.inspectValue(item))
		}
		for k, item := range m.Str {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%q: %s", k, vm.inspectValue(item))
		}
		b.WriteByte('}')
		return b.String()
	case KindFunction:
		f := vm.heap.function(hd)
		if f.IsNative() {
			return "<native " + f.Name + ">"
		}
		return "<fn " + f.Name + ">"
	case KindModule:
		return "<module " + vm.heap.module(hd).Name + ">"
	case KindStructDef:
		return "<struct " + vm.heap.str(vm.heap.structDef(hd).Name).Chars + ">"
	case KindStructInstance:
		s := vm.heap.structInst(hd)
		def := vm.heap.structDef(s.Def)
		var b strings.Builder
		b.WriteString(vm.heap.str(def.Name).Chars)
		b.WriteByte('{')
		for i, f := range def.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(vm.heap.str(f).Chars)
			b.WriteString(": ")
			b.WriteString(vm.inspectValue(s.Fields[i]))
		}
		b.WriteByte('}')
		return b.String()
	case KindFuture:
		return "<future>"
	case KindResource:
		return "<resource " + vm.heap.resource(hd).Kind + ">"
	default:
		return "<object>"
	}
}

// inspectValue is formatValue with strings quoted, for aggregate
// element rendering.
func (vm *VM) inspectValue(v Value) string {
	if vm.isString(v) {
		return strconv.Quote(vm.heap.str(v.AsHandle()).Chars)
	}
	return vm.formatValue(v)
}

// typeName names a value's dynamic type for diagnostics.
func (vm *VM) typeName(v Value) string {
	switch {
	case v.IsInt():
		return "int"
	case v.IsFloat():
		return "float"
	case v.IsBool():
		return "bool"
	case v.IsNil():
		return "nil"
	case v.IsObj():
		return objKindNames[vm.heap.kind(v.AsHandle())]
	default:
		return "unknown"
	}
}

// getProperty handles dotted access: module members, struct fields, and
// the length pseudo-field on strings and arrays. A missing member is
// fatal.
func (vm *VM) getProperty(target Value, name Handle) (Value, error) {
	if !target.IsObj() {
		return NilVal(), vm.runtimeError(errBadOperand, "%s has no properties", vm.typeName(target))
	}
	hd := target.AsHandle()
	switch vm.heap.kind(hd) {
	case KindModule:
		env := vm.heap.module(hd).Env
		if v, ok := vm.envLookupLocal(env, name); ok {
			return v, nil
		}
		if fn, ok := vm.envLookupFn(env, name); ok {
			return ObjVal(fn), nil
		}
		return NilVal(), vm.runtimeError(errUndefinedProperty, "%q in module %s",
			vm.heap.str(name).Chars, vm.heap.module(hd).Name)
	case KindStructInstance:
		s := vm.heap.structInst(hd)
		if i, ok := vm.fieldIndex(s.Def, name); ok {
			return s.Fields[i], nil
		}
		return NilVal(), vm.runtimeError(errUndefinedProperty, "%q on %s",
			vm.heap.str(name).Chars, vm.heap.str(vm.heap.structDef(s.Def).Name).Chars)
	case KindString:
		if vm.heap.str(name).Chars == "length" {
			return IntVal(int32(len(vm.heap.str(hd).Chars))), nil
		}
	case KindArray:
		if vm.heap.str(name).Chars == "length" {
			return IntVal(int32(len(vm.heap.array(hd).Items))), nil
		}
	}
	return NilVal(), vm.runtimeError(errUndefinedProperty, "%q on %s",
		vm.heap.str(name).Chars, vm.typeName(target))
}

// setProperty assigns a struct field.
func (vm *VM) setProperty(target Value, name Handle, v Value) error {
	if target.IsObj() && vm.heap.kind(target.AsHandle()) == KindStructInstance {
		s := vm.heap.structInst(target.AsHandle())
		if i, ok := vm.fieldIndex(s.Def, name); ok {
			locked := vm.lockStores()
			s.Fields[i] = v
			vm.unlockStores(locked)
			vm.writeBarrier(v)
			return nil
		}
		return vm.runtimeError(errUndefinedProperty, "%q on %s",
			vm.heap.str(name).Chars, vm.heap.str(vm.heap.structDef(s.Def).Name).Chars)
	}
	return vm.runtimeError(errBadOperand, "cannot set properties on %s", vm.typeName(target))
}

// fieldIndex resolves a field name against a struct definition. Handle
// identity covers the interned case; the content compare covers names
// long enough to bypass the pool.
func (vm *VM) fieldIndex(def Handle, name Handle) (int, bool) {
	d := vm.heap.structDef(def)
	for i, f := range d.Fields {
		if f == name || vm.heap.str(f).Chars == vm.heap.str(name).Chars {
			return i, true
		}
	}
	return 0, false
}

// getIndex handles subscript reads. Array reads are bounds-checked; a
// map read of an absent key is fatal, which keeps it distinct from a
// present key holding nil (use has to test presence).
func (vm *VM) getIndex(target, index Value) (Value, error) {
	if !target.IsObj() {
		return NilVal(), vm.runtimeError(errBadOperand, "%s is not indexable", vm.typeName(target))
	}
	hd := target.AsHandle()
	switch vm.heap.kind(hd) {
	case KindArray:
		if !index.IsInt() {
			return NilVal(), vm.runtimeError(errBadOperand, "array index must be an integer")
		}
		items := vm.heap.array(hd).Items
		i := int(index.AsInt())
		if i < 0 || i >= len(items) {
			return NilVal(), vm.runtimeError(errIndexOutOfRange, "index %d, length %d", i, len(items))
		}
		return items[i], nil
	case KindMap:
		m := vm.heap.mapObj(hd)
		switch {
		case index.IsInt():
			if v, ok := m.Int[index.AsInt()]; ok {
				return v, nil
			}
			return NilVal(), vm.runtimeError(errUndefinedProperty, "key %d not found", index.AsInt())
		case vm.isString(index):
			key := vm.heap.str(index.AsHandle()).Chars
			if v, ok := m.Str[key]; ok {
				return v, nil
			}
			return NilVal(), vm.runtimeError(errUndefinedProperty, "key %q not found", key)
		default:
			return NilVal(), vm.runtimeError(errBadOperand, "map key must be an integer or string")
		}
	case KindString:
		if !index.IsInt() {
			return NilVal(), vm.runtimeError(errBadOperand, "string index must be an integer")
		}
		s := vm.heap.str(hd).Chars
		i := int(index.AsInt())
		if i < 0 || i >= len(s) {
			return NilVal(), vm.runtimeError(errIndexOutOfRange, "index %d, length %d", i, len(s))
		}
		return ObjVal(vm.internString(s[i : i+1])), nil
	default:
		return NilVal(), vm.runtimeError(errBadOperand, "%s is not indexable", vm.typeName(target))
	}
}

// setIndex handles subscript writes. Writing past the end of an array
// grows it, nil-filling the gap.
func (vm *VM) setIndex(target, index, v Value) error {
	if !target.IsObj() {
		return vm.runtimeError(errBadOperand, "%s is not indexable", vm.typeName(target))
	}
	hd := target.AsHandle()
	switch vm.heap.kind(hd) {
	case KindArray:
		if !index.IsInt() {
			return vm.runtimeError(errBadOperand, "array index must be an integer")
		}
		i := int(index.AsInt())
		if i < 0 {
			return vm.runtimeError(errIndexOutOfRange, "index %d", i)
		}
		arr := vm.heap.array(hd)
		locked := vm.lockStores()
		for len(arr.Items) <= i {
			arr.Items = append(arr.Items, NilVal())
		}
		arr.Items[i] = v
		vm.unlockStores(locked)
		vm.writeBarrier(v)
		return nil
	case KindMap:
		m := vm.heap.mapObj(hd)
		locked := vm.lockStores()
		switch {
		case index.IsInt():
			m.Int[index.AsInt()] = v
		case vm.isString(index):
			m.Str[vm.heap.str(index.AsHandle()).Chars] = v
		default:
			vm.unlockStores(locked)
			return vm.runtimeError(errBadOperand, "map key must be an integer or string")
		}
		vm.unlockStores(locked)
		vm.writeBarrier(v)
		return nil
	default:
		return vm.runtimeError(errBadOperand, "%s is not indexable", vm.typeName(target))
	}
}

// lengthOf implements the length operation on strings, arrays, and maps.
func (vm *VM) lengthOf(v Value) (Value, error) {
	if v.IsObj() {
		hd := v.AsHandle()
		switch vm.heap.kind(hd) {
		case KindString:
			return IntVal(int32(len(vm.heap.str(hd).Chars))), nil
		case KindArray:
			return IntVal(int32(len(vm.heap.array(hd).Items))), nil
		case KindMap:
			m := vm.heap.mapObj(hd)
			return IntVal(int32(len(m.Str) + len(m.Int))), nil
		}
	}
	return NilVal(), vm.runtimeError(errBadOperand, "%s has no length", vm.typeName(v))
}
