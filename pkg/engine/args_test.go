package engine

import (
	"reflect"
	"testing"
)

func argComponent(args map[string]string) *Component {
	return &Component{effectiveArgs: args}
}

func TestSplitArgList_QuotedTokens(t *testing.T) {
	got := SplitArgList(" a b 'c d' e ")
	want := []string{"a", "b", "c d", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSplitArgList_Empty(t *testing.T) {
	if got := SplitArgList(""); len(got) != 0 {
		t.Errorf("Expected no tokens, got %v", got)
	}
	if got := SplitArgList("   \t\n"); len(got) != 0 {
		t.Errorf("Expected no tokens for whitespace, got %v", got)
	}
}

func TestSplitArgList_TrailingUnquoted(t *testing.T) {
	got := SplitArgList("a b")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestGetBoolArg(t *testing.T) {
	c := argComponent(map[string]string{
		"t1": "true", "t2": "yes", "t3": "1",
		"f1": "false", "f2": "no", "f3": "0",
		"bad": "maybe",
	})

	for _, name := range []string{"t1", "t2", "t3"} {
		v, err := c.GetBoolArg(name)
		if err != nil || v == nil || !*v {
			t.Errorf("%s: expected true, got %v err %v", name, v, err)
		}
	}
	for _, name := range []string{"f1", "f2", "f3"} {
		v, err := c.GetBoolArg(name)
		if err != nil || v == nil || *v {
			t.Errorf("%s: expected false, got %v err %v", name, v, err)
		}
	}

	if v, err := c.GetBoolArg("missing"); err != nil || v != nil {
		t.Errorf("missing: expected nil, got %v err %v", v, err)
	}

	if _, err := c.GetBoolArg("bad"); err == nil {
		t.Error("bad: expected error")
	}
}

func TestGetArgAsEnvList(t *testing.T) {
	c := argComponent(map[string]string{
		"pod.env": "A=1 B 'C=x y' =dropped",
	})

	got := c.GetArgAsEnvList("pod.env")
	if len(got) != 3 {
		t.Fatalf("Expected 3 vars, got %v", got)
	}
	if got[0].Name != "A" || got[0].Value != "1" {
		t.Errorf("Wrong first var: %+v", got[0])
	}
	if got[1].Name != "B" || got[1].Value != "" {
		t.Errorf("Wrong second var: %+v", got[1])
	}
	if got[2].Name != "C" || got[2].Value != "x y" {
		t.Errorf("Wrong third var: %+v", got[2])
	}
}

func TestGetArgAsKv_LastWins(t *testing.T) {
	c := argComponent(map[string]string{
		"labels": "a=1 b a=2",
	})

	got := c.GetArgAsKv("labels")
	if got["a"] != "2" {
		t.Errorf("Expected last value to win, got %q", got["a"])
	}
	if v, ok := got["b"]; !ok || v != "" {
		t.Errorf("Expected empty value for b, got %q ok=%v", v, ok)
	}
}

func TestMergeArgs_NearestWins(t *testing.T) {
	grandparent := &Component{DefaultArgs: map[string]string{"image": "gp", "replicas": "3"}}
	parent := &Component{DefaultArgs: map[string]string{"image": "p"}, parent: grandparent}
	child := &Component{parent: parent}
	child.Args = map[string]string{"port": "80"}

	merged := mergeArgs(child.Args, child.pathToRoot())

	if merged["port"] != "80" {
		t.Errorf("Own arg lost: %v", merged)
	}
	if merged["image"] != "p" {
		t.Errorf("Expected nearest ancestor to win, got %q", merged["image"])
	}
	if merged["replicas"] != "3" {
		t.Errorf("Expected gap filled from grandparent, got %q", merged["replicas"])
	}
}

func TestMergeArgs_PodArgsConcatenate(t *testing.T) {
	grandparent := &Component{DefaultArgs: map[string]string{"pod.args": "--base"}}
	parent := &Component{DefaultArgs: map[string]string{"pod.args": "--mid", "pod.env": "E=1"}, parent: grandparent}
	child := &Component{parent: parent}
	child.Args = map[string]string{"pod.args": "--own"}

	merged := mergeArgs(child.Args, child.pathToRoot())

	if merged["pod.args"] != "--own --mid --base" {
		t.Errorf("Expected descendant-first concatenation, got %q", merged["pod.args"])
	}
	if merged["pod.env"] != "E=1" {
		t.Errorf("Expected ancestor value, got %q", merged["pod.env"])
	}
}
