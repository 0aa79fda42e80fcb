package homie

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"integer", Integer(-72), "-72"},
		{"float whole", Float(25), "25"},
		{"float fraction", Float(21.5), "21.5"},
		{"float small", Float(0.001), "0.001"},
		{"percent", Percent(99.5), "99.5"},
		{"boolean true", Boolean(true), "true"},
		{"boolean false", Boolean(false), "false"},
		{"string", String("hello world"), "hello world"},
		{"enum", Enum("single"), "single"},
		{"rgb", RGB{R: 255, G: 128, B: 0}, "255,128,0"},
		{"hsv", HSV{H: 300, S: 50, V: 75}, "300,50,75"},
		{"datetime", DateTime(ts), "2024-03-01T12:30:00Z"},
		{"duration", Duration(90 * time.Second), "90"},
		{"duration truncates", Duration(1500 * time.Millisecond), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.value)
			if err != nil {
				t.Fatalf("EncodeValue() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeValue_Nil(t *testing.T) {
	if _, err := EncodeValue(nil); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("EncodeValue(nil) error = %v, want ErrInvalidValue", err)
	}
}

func TestEncodeFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{"nil", nil, ""},
		{"int range", IntRange{Min: 0, Max: 255}, "0:255"},
		{"negative int range", IntRange{Min: -100, Max: 0}, "-100:0"},
		{"float range", FloatRange{Min: 0, Max: 100}, "0:100"},
		{"float range fraction", FloatRange{Min: -0.5, Max: 1.25}, "-0.5:1.25"},
		{"enum", EnumValues{"single", "double", "long"}, "single,double,long"},
		{"rgb", ColorRGB, "rgb"},
		{"hsv", ColorHSV, "hsv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeFormat(tt.format); got != tt.want {
				t.Errorf("EncodeFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeDescriptor_DeepCopy(t *testing.T) {
	node := NodeDescriptor{
		ID: "action",
		Properties: []PropertyDescriptor{
			{ID: "action", Datatype: DatatypeEnum, Format: EnumValues{"a", "b"}},
		},
	}
	cp := node.DeepCopy()
	cp.Properties[0].ID = "changed"
	cp.Properties[0].Format.(EnumValues)[0] = "z"

	if node.Properties[0].ID != "action" {
		t.Error("property slice shared with copy")
	}
	if node.Properties[0].Format.(EnumValues)[0] != "a" {
		t.Error("enum values shared with copy")
	}
}
