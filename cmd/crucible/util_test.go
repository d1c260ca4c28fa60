package main

import (
	"reflect"
	"testing"
)

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		jsonDoc string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "pairs only",
			pairs: []string{"code=x", "language=go"},
			want:  map[string]interface{}{"code": "x", "language": "go"},
		},
		{
			name:    "json only",
			jsonDoc: `{"count": 3}`,
			want:    map[string]interface{}{"count": float64(3)},
		},
		{
			name:    "json wins over pair",
			pairs:   []string{"code=x"},
			jsonDoc: `{"code": "y"}`,
			want:    map[string]interface{}{"code": "y"},
		},
		{
			name:  "value may contain equals",
			pairs: []string{"expr=a=b"},
			want:  map[string]interface{}{"expr": "a=b"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"nope"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=v"},
			wantErr: true,
		},
		{
			name:    "malformed json",
			jsonDoc: `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(tt.pairs, tt.jsonDoc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("inputs = %v, want %v", got, tt.want)
			}
		})
	}
}
