package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const resolveTestPrefix = "schema:resolve_test"

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func testTree() Branch {
	return Branch{
		"ipcTest": Branch{
			"msg":   Request[string, string](),
			"front": SignalToMain[addArgs](),
			"back":  SignalToRenderer[bool](),
			"test": Branch{
				"deep": Request[struct{}, string](),
			},
		},
		"another": RequestOnce[string, string](),
		"custom":  Branch{"named": SignalToMainOnce[int](WithName("custom"))},
	}
}

func TestResolve_DerivedNames(t *testing.T) {
	names, err := Resolve(testTree(), nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}

	tests := []struct {
		path []string
		want string
	}{
		{[]string{"ipcTest", "msg"}, "ipcTest::msg"},
		{[]string{"ipcTest", "front"}, "ipcTest::front"},
		{[]string{"ipcTest", "back"}, "ipcTest::back"},
		{[]string{"ipcTest", "test", "deep"}, "ipcTest::test::deep"},
		{[]string{"another"}, "another"},
		{[]string{"custom", "named"}, "custom"},
	}
	for _, tt := range tests {
		got, ok := names.Lookup(tt.path...)
		if !ok {
			t.Errorf("%s - Lookup(%v) not found", resolveTestPrefix, tt.path)
			continue
		}
		if got != tt.want {
			t.Errorf("%s - Lookup(%v) = %q, want %q", resolveTestPrefix, tt.path, got, tt.want)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	tree := testTree()
	first, err := Resolve(tree, nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}
	for i := 0; i < 20; i++ {
		again, err := Resolve(tree, nil)
		if err != nil {
			t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(again)
		if string(a) != string(b) {
			t.Fatalf("%s - resolution %d differs:\n%s\n%s", resolveTestPrefix, i, a, b)
		}
	}
}

func TestResolve_ExplicitNameIgnoresPosition(t *testing.T) {
	tree := Branch{
		"a": Branch{"b": Branch{"c": Request[int, int](WithName("custom"))}},
		"d": SignalToRenderer[int](WithName("custom")),
	}
	names, err := Resolve(tree, nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}
	for _, path := range [][]string{{"a", "b", "c"}, {"d"}} {
		if got, _ := names.Lookup(path...); got != "custom" {
			t.Errorf("%s - Lookup(%v) = %q, want custom", resolveTestPrefix, path, got)
		}
	}
}

func TestResolve_CustomSeparator(t *testing.T) {
	names, err := Resolve(testTree(), &ResolveOptions{Separator: "."})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}
	if got, _ := names.Lookup("ipcTest", "test", "deep"); got != "ipcTest.test.deep" {
		t.Errorf("%s - got %q, want ipcTest.test.deep", resolveTestPrefix, got)
	}
}

func TestResolve_ShapeAndJSON(t *testing.T) {
	tree := Branch{
		"math":  Branch{"add": Request[addArgs, int]()},
		"empty": Branch{},
	}
	names, err := Resolve(tree, nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}
	data, err := json.Marshal(names)
	if err != nil {
		t.Fatalf("%s - marshal failed: %v", resolveTestPrefix, err)
	}
	want := `{"empty":{},"math":{"add":"math::add"}}`
	if string(data) != want {
		t.Errorf("%s - JSON = %s, want %s", resolveTestPrefix, data, want)
	}
}

func TestResolve_InvalidTrees(t *testing.T) {
	var nilDecl *RequestDecl[int, int]
	tests := []struct {
		name string
		tree Branch
	}{
		{"nil node", Branch{"a": nil}},
		{"typed nil declaration", Branch{"a": Branch{"b": nilDecl}}},
		{"empty key", Branch{"": Request[int, int]()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.tree, nil)
			if !errors.Is(err, ErrInvalidTree) {
				t.Errorf("%s - err = %v, want ErrInvalidTree", resolveTestPrefix, err)
			}
		})
	}
}

func TestNameBranch_Flatten(t *testing.T) {
	names, err := Resolve(testTree(), nil)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", resolveTestPrefix, err)
	}
	want := map[string]string{
		"ipcTest.msg":       "ipcTest::msg",
		"ipcTest.front":     "ipcTest::front",
		"ipcTest.back":      "ipcTest::back",
		"ipcTest.test.deep": "ipcTest::test::deep",
		"another":           "another",
		"custom.named":      "custom",
	}
	if got := names.Flatten(); !reflect.DeepEqual(got, want) {
		t.Errorf("%s - Flatten() = %v, want %v", resolveTestPrefix, got, want)
	}
}

func TestWalk_SortedOrderAndStop(t *testing.T) {
	var seen []string
	stop := errors.New("stop")
	err := Walk(testTree(), "", func(_ []string, wire string, _ Leaf) error {
		seen = append(seen, wire)
		if len(seen) == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("%s - err = %v, want stop", resolveTestPrefix, err)
	}
	want := []string{"another", "custom", "ipcTest::back"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("%s - visited %v, want %v", resolveTestPrefix, seen, want)
	}
}
