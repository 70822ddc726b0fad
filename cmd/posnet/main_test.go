package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "request.xml")
	if err := os.WriteFile(path, []byte("<posnetRequest/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "file argument", args: []string{path}, want: "<posnetRequest/>"},
		{name: "stdin without argument", stdin: "<a/>", want: "<a/>"},
		{name: "stdin with dash", stdin: "<b/>", args: []string{"-"}, want: "<b/>"},
		{name: "missing file", args: []string{filepath.Join(dir, "nope.xml")}, wantErr: true},
		{name: "empty input", stdin: "  \n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPayload(strings.NewReader(tt.stdin), tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("readPayload() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readPayload() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("readPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}
