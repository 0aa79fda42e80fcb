package homie

import (
	"errors"
	"testing"
)

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"sensor-1", true},
		{"a", true},
		{"0", true},
		{"bthome-a4c138000001", true},
		{"double--hyphen", true},
		{"Sensor1", false},
		{"-sensor", false},
		{"sensor-", false},
		{"", false},
		{"sen_sor", false},
		{"sen sor", false},
		{"$state", false},
		{"a/b", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestValidateNode(t *testing.T) {
	tests := []struct {
		name string
		node NodeDescriptor
		want error
	}{
		{
			name: "valid",
			node: sensorNode(),
		},
		{
			name: "bad node id",
			node: NodeDescriptor{ID: "Sensors"},
			want: ErrInvalidID,
		},
		{
			name: "bad property id",
			node: NodeDescriptor{ID: "sensors", Properties: []PropertyDescriptor{{ID: "-t", Datatype: DatatypeFloat}}},
			want: ErrInvalidID,
		},
		{
			name: "duplicate property",
			node: NodeDescriptor{ID: "sensors", Properties: []PropertyDescriptor{
				{ID: "t", Datatype: DatatypeFloat},
				{ID: "t", Datatype: DatatypeInteger},
			}},
			want: ErrDuplicateID,
		},
		{
			name: "missing datatype",
			node: NodeDescriptor{ID: "sensors", Properties: []PropertyDescriptor{{ID: "t"}}},
			want: ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNode(tt.node)
			if tt.want == nil {
				if err != nil {
					t.Errorf("validateNode() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("validateNode() error = %v, want %v", err, tt.want)
			}
		})
	}
}
