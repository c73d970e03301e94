package grammar

import (
	"testing"

	"github.com/leapstack-labs/declsql/pkg/core"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		key       string
		wantField string
		wantOp    core.Operator
	}{
		{"age", "age", core.OpEq},
		{"age>", "age", core.OpGt},
		{"age>=", "age", core.OpGte},
		{"age<", "age", core.OpLt},
		{"age<=", "age", core.OpLte},
		{"age!=", "age", core.OpNe},
		{"age><", "age", core.OpBetween},
		{"age!><", "age", core.OpNotBetween},
		{"tags<>", "tags", core.OpContains},
		{"name~", "name", core.OpLike},
		{"name!~", "name", core.OpNotLike},
		{"id[]", "id", core.OpIn},
		{"id{}", "id", core.OpNotIn},
		{"$and", "", core.OpAnd},
		{"$or", "", core.OpOr},
		{"$not", "", core.OpNot},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := Decode(tt.key)
			if got.Field != tt.wantField || got.Op != tt.wantOp {
				t.Errorf("Decode(%q) = (%q, %s), want (%q, %s)",
					tt.key, got.Field, got.Op, tt.wantField, tt.wantOp)
			}
		})
	}
}

// Longest-suffix-first matching: ">=" must never decode as ">".
func TestDecodePriority(t *testing.T) {
	if got := Decode("age>="); got.Op != core.OpGte {
		t.Errorf("age>= decoded as %s", got.Op)
	}
	if got := Decode("age!~"); got.Op != core.OpNotLike {
		t.Errorf("age!~ decoded as %s", got.Op)
	}
	if got := Decode("age!><"); got.Op != core.OpNotBetween {
		t.Errorf("age!>< decoded as %s", got.Op)
	}
}

func TestDecodeBareSuffix(t *testing.T) {
	// A key that IS a suffix has no field to strip; it decodes to equality.
	if got := Decode(">"); got.Op != core.OpEq || got.Field != ">" {
		t.Errorf("bare suffix decoded as (%q, %s)", got.Field, got.Op)
	}
}

func TestReference(t *testing.T) {
	field, isArray, ok := Reference("orderId@")
	if !ok || isArray || field != "orderId" {
		t.Errorf("orderId@ = (%q, %v, %v)", field, isArray, ok)
	}

	field, isArray, ok = Reference("id{}@")
	if !ok || !isArray || field != "id" {
		t.Errorf("id{}@ = (%q, %v, %v)", field, isArray, ok)
	}

	if _, _, ok := Reference("plain"); ok {
		t.Error("plain key should not be a reference")
	}
	if _, _, ok := Reference("@"); ok {
		t.Error("bare @ should not be a reference")
	}
}

// Round-trip: rendering a (field, operator) pair and decoding it again
// yields the original pair, for every operator with a textual form.
func TestRenderDecodeRoundTrip(t *testing.T) {
	ops := []core.Operator{
		core.OpEq, core.OpNe, core.OpGt, core.OpGte, core.OpLt, core.OpLte,
		core.OpLike, core.OpNotLike, core.OpIn, core.OpNotIn,
		core.OpBetween, core.OpNotBetween, core.OpContains,
		core.OpAnd, core.OpOr, core.OpNot,
	}
	for _, op := range ops {
		field := "f"
		if op.IsGroup() {
			field = ""
		}
		key := Render(field, op)
		got := Decode(key)
		if got.Field != field || got.Op != op {
			t.Errorf("%s: round-trip through %q gave (%q, %s)", op, key, got.Field, got.Op)
		}
	}
}
