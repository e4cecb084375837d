package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/damiencorpataux/relrest/internal/catalog"
)

func TestCoerceValue(t *testing.T) {
	cases := []struct {
		typ   catalog.ScalarType
		value string
		want  any
		fails bool
	}{
		{typ: catalog.TypeInt, value: "42", want: int64(42)},
		{typ: catalog.TypeInt, value: "-7", want: int64(-7)},
		{typ: catalog.TypeInt, value: "abc", fails: true},
		{typ: catalog.TypeFloat, value: "2.5", want: 2.5},
		{typ: catalog.TypeFloat, value: "x", fails: true},
		{typ: catalog.TypeString, value: "42", want: "42"},
		{typ: catalog.TypeDatetime, value: "2026-08-24T10:00:00", want: "2026-08-24T10:00:00"},
		// A non-numeric string is true, a numeric one is false iff zero.
		{typ: catalog.TypeBool, value: "true", want: true},
		{typ: catalog.TypeBool, value: "false", want: true},
		{typ: catalog.TypeBool, value: "0", want: false},
		{typ: catalog.TypeBool, value: "1", want: true},
	}
	for _, tc := range cases {
		got, err := coerceValue(tc.typ, tc.value)
		if tc.fails {
			if err == nil {
				t.Errorf("coerceValue(%v, %q): expected an error, got %v", tc.typ, tc.value, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("coerceValue(%v, %q): %v", tc.typ, tc.value, err)
			continue
		}
		if got != tc.want {
			t.Errorf("coerceValue(%v, %q) = %v (%T), want %v (%T)", tc.typ, tc.value, got, got, tc.want, tc.want)
		}
	}
}

func TestCoerceList(t *testing.T) {
	got, err := coerceList(catalog.TypeInt, "1,2,3")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{int64(1), int64(2), int64(3)}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	got, err = coerceList(catalog.TypeString, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("empty value must coerce to an empty list, got %v", got)
	}

	if _, err := coerceList(catalog.TypeInt, "1,x"); err == nil {
		t.Error("a bad element must fail the whole list")
	}
}
