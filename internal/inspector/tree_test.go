package inspector

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func value(topic, payload string) Value {
	return NewValue(topic, []byte(payload), false, time.Unix(1700000000, 0).UTC())
}

func topics(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Topic
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Classification
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		payload []byte
		want    Kind
	}{
		{[]byte(`{"temperature":21.5}`), KindJSON},
		{[]byte(`21.3`), KindJSON},
		{[]byte(`true`), KindJSON},
		{[]byte(`ready`), KindString},
		{[]byte(`sensors,link`), KindString},
		{[]byte{}, KindString},
		{[]byte{0xff, 0xfe, 0x00}, KindBytes},
	}
	for _, tt := range tests {
		if got := Classify(tt.payload); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.payload, got, tt.want)
		}
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"json", value("a", `{"x":1}`), `"json":{"x":1}`},
		{"string", value("a", "ready"), `"text":"ready"`},
		{"bytes", NewValue("a", []byte{0xff}, false, time.Time{}), `"bytes":"/w=="`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if !contains(string(data), tt.want) {
				t.Errorf("Marshal() = %s, want it to contain %s", data, tt.want)
			}
		})
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// =============================================================================
// Tree
// =============================================================================

func TestTree_InsertGet(t *testing.T) {
	tree := NewTree(0)
	for _, topic := range []string{"foo", "bar", "foo/bar"} {
		if err := tree.Insert(value(topic, "x")); err != nil {
			t.Fatalf("Insert(%s) error = %v", topic, err)
		}
	}

	for _, topic := range []string{"foo", "bar", "foo/bar"} {
		v, ok := tree.Get(topic)
		if !ok || v.Topic != topic {
			t.Errorf("Get(%s) = %+v, %v", topic, v, ok)
		}
	}
	if _, ok := tree.Get("foo/baz"); ok {
		t.Error("Get(foo/baz) found a value")
	}
	if tree.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tree.Len())
	}

	if err := tree.Insert(value("foo", "y")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if v, _ := tree.Get("foo"); v.Text() != "y" {
		t.Errorf("Get(foo) = %q, want replaced value", v.Text())
	}
	if tree.Len() != 3 {
		t.Errorf("Len() after replace = %d, want 3", tree.Len())
	}
}

func TestTree_IntermediateLevelHasNoValue(t *testing.T) {
	tree := NewTree(0)
	_ = tree.Insert(value("homie/dev/$state", "ready"))
	if _, ok := tree.Get("homie/dev"); ok {
		t.Error("intermediate level holds a value")
	}
}

func TestTree_Snapshot(t *testing.T) {
	tree := NewTree(0)
	for _, topic := range []string{
		"zigbee2mqtt/hall",
		"homie/b/$state",
		"homie/a/sensors/temperature",
		"homie/a/$state",
		"homie/a",
	} {
		_ = tree.Insert(value(topic, "x"))
	}

	want := []string{
		"homie/a",
		"homie/a/$state",
		"homie/a/sensors/temperature",
		"homie/b/$state",
		"zigbee2mqtt/hall",
	}
	if got := topics(tree.Snapshot("")); !equal(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}

	wantA := []string{"homie/a", "homie/a/$state", "homie/a/sensors/temperature"}
	if got := topics(tree.Snapshot("homie/a/")); !equal(got, wantA) {
		t.Errorf("Snapshot(homie/a/) = %v, want %v", got, wantA)
	}
	if got := tree.Snapshot("nothing"); got != nil {
		t.Errorf("Snapshot(nothing) = %v, want nil", got)
	}
}

func TestTree_EmptyRetainedDeletes(t *testing.T) {
	tree := NewTree(0)
	_ = tree.Insert(value("homie/a/$state", "ready"))
	_ = tree.Insert(value("homie/b/$state", "ready"))

	if err := tree.Insert(NewValue("homie/a/$state", nil, true, time.Now())); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, ok := tree.Get("homie/a/$state"); ok {
		t.Error("value survived an empty retained message")
	}
	if tree.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tree.Len())
	}
	if got := topics(tree.Snapshot("")); !equal(got, []string{"homie/b/$state"}) {
		t.Errorf("Snapshot() = %v", got)
	}

	// A non-retained empty payload is just a value.
	_ = tree.Insert(value("homie/c", ""))
	if _, ok := tree.Get("homie/c"); !ok {
		t.Error("non-retained empty payload dropped")
	}
}

func TestTree_Delete(t *testing.T) {
	tree := NewTree(0)
	_ = tree.Insert(value("a/b/c", "x"))
	_ = tree.Insert(value("a", "x"))

	if !tree.Delete("a/b/c") {
		t.Fatal("Delete(a/b/c) = false")
	}
	if tree.Delete("a/b/c") {
		t.Error("second Delete(a/b/c) = true")
	}
	if tree.Delete("a/b") {
		t.Error("Delete of a level without value = true")
	}
	if got := topics(tree.Snapshot("")); !equal(got, []string{"a"}) {
		t.Errorf("Snapshot() = %v, want [a]", got)
	}
}

func TestTree_Limit(t *testing.T) {
	tree := NewTree(2)
	_ = tree.Insert(value("a", "1"))
	_ = tree.Insert(value("b/c", "1"))

	if err := tree.Insert(value("b/d", "1")); !errors.Is(err, ErrTreeFull) {
		t.Fatalf("Insert() error = %v, want ErrTreeFull", err)
	}
	if err := tree.Insert(value("a", "2")); err != nil {
		t.Errorf("updating existing topic error = %v", err)
	}
	if got := topics(tree.Snapshot("")); !equal(got, []string{"a", "b/c"}) {
		t.Errorf("Snapshot() = %v", got)
	}

	tree.Delete("a")
	if err := tree.Insert(value("b/d", "1")); err != nil {
		t.Errorf("Insert() after delete error = %v", err)
	}
}

func TestTree_Watch(t *testing.T) {
	tree := NewTree(0)
	values, cancel := tree.Watch(4)

	_ = tree.Insert(value("a", "1"))
	select {
	case v := <-values:
		if v.Topic != "a" {
			t.Errorf("watched topic = %s", v.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("no value delivered")
	}

	cancel()
	cancel()
	if _, open := <-values; open {
		t.Error("channel open after cancel")
	}
	_ = tree.Insert(value("b", "1"))
}

func TestTree_WatchDoesNotBlock(t *testing.T) {
	tree := NewTree(0)
	_, cancel := tree.Watch(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = tree.Insert(value("a", "x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Insert blocked on a slow watcher")
	}
}
