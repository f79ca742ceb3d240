package ports

import (
	"context"
	"reflect"
	"testing"

	"videostream/internal/domain"
)

func TestMediaRepositoryInterface(t *testing.T) {
	typ := reflect.TypeOf((*MediaRepository)(nil)).Elem()
	idType := reflect.TypeOf(domain.MediaID(""))
	recordType := reflect.TypeOf(domain.MediaRecord{})

	assertMethod(t, typ, "Lookup", []reflect.Type{contextType(), idType}, []reflect.Type{recordType, errorType()})
	assertMethod(t, typ, "ListAll", []reflect.Type{contextType()}, []reflect.Type{reflect.SliceOf(recordType), errorType()})
	assertMethod(t, typ, "Save", []reflect.Type{contextType(), recordType}, []reflect.Type{errorType()})
	assertMethod(t, typ, "Remove", []reflect.Type{contextType(), idType}, []reflect.Type{reflect.TypeOf(false), errorType()})
	assertMethod(t, typ, "Exists", []reflect.Type{contextType(), idType}, []reflect.Type{reflect.TypeOf(false), errorType()})
	assertMethod(t, typ, "ScanDirectory", []reflect.Type{
		contextType(),
		reflect.TypeOf(""),
		reflect.TypeOf(func(domain.MediaRecord) {}),
	}, []reflect.Type{reflect.TypeOf(0), errorType()})
}

func assertMethod(t *testing.T, typ reflect.Type, name string, in []reflect.Type, out []reflect.Type) {
	t.Helper()
	method, ok := typ.MethodByName(name)
	if !ok {
		t.Fatalf("missing method %s", name)
	}

	if method.Type.NumIn() != len(in) {
		t.Fatalf("%s NumIn = %d, want %d", name, method.Type.NumIn(), len(in))
	}
	for i, typIn := range in {
		if got := method.Type.In(i); got != typIn {
			t.Fatalf("%s In[%d] = %s, want %s", name, i, got, typIn)
		}
	}

	if method.Type.NumOut() != len(out) {
		t.Fatalf("%s NumOut = %d, want %d", name, method.Type.NumOut(), len(out))
	}
	for i, typOut := range out {
		if got := method.Type.Out(i); got != typOut {
			t.Fatalf("%s Out[%d] = %s, want %s", name, i, got, typOut)
		}
	}
}

func contextType() reflect.Type {
	return reflect.TypeOf((*context.Context)(nil)).Elem()
}

func errorType() reflect.Type {
	return reflect.TypeOf((*error)(nil)).Elem()
}
