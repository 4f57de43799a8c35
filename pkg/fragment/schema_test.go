package fragment

import (
	"testing"

	"github.com/fragmentd/fragmentd/pkg/api"
)

func TestParse_ProgressivePrefixes(t *testing.T) {
	// Every prefix of a well-formed document must either decode to a
	// snapshot or be reported as not-yet-parseable, never fail hard.
	full := `{"commentary":"building a chart","template":"streamlit-developer","code":"import streamlit as st","file_path":"app.py"}`

	var last *api.Fragment
	for i := 1; i <= len(full); i++ {
		frag, ok := Parse(full[:i])
		if ok {
			last = frag
		}
	}

	if last == nil {
		t.Fatal("no prefix decoded")
	}
	if last.Commentary != "building a chart" {
		t.Errorf("commentary = %q", last.Commentary)
	}
	if last.Template != api.TemplateStreamlit {
		t.Errorf("template = %q", last.Template)
	}
	if last.Code != "import streamlit as st" {
		t.Errorf("code = %q", last.Code)
	}
	if last.FilePath != "app.py" {
		t.Errorf("file_path = %q", last.FilePath)
	}
}

func TestParse_WholeFieldReplace(t *testing.T) {
	// A later snapshot carries the full field value, not an increment:
	// code grows "a" -> "ab" -> "abc" across snapshots.
	steps := []struct {
		raw      string
		wantCode string
	}{
		{`{"code":"a`, "a"},
		{`{"code":"ab`, "ab"},
		{`{"code":"abc`, "abc"},
		{`{"code":"abc"}`, "abc"},
	}

	for _, step := range steps {
		frag, ok := Parse(step.raw)
		if !ok {
			t.Fatalf("Parse(%q) not ok", step.raw)
		}
		if frag.Code != step.wantCode {
			t.Errorf("Parse(%q).Code = %q, want %q", step.raw, frag.Code, step.wantCode)
		}
	}
}

func TestParse_RepairCases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
		want func(*api.Fragment) bool
	}{
		{
			name: "dangling key",
			raw:  `{"code":"x","file_`,
			ok:   true,
			want: func(f *api.Fragment) bool { return f.Code == "x" && f.FilePath == "" },
		},
		{
			name: "dangling colon",
			raw:  `{"code":"x","file_path":`,
			ok:   true,
			want: func(f *api.Fragment) bool { return f.Code == "x" },
		},
		{
			name: "open array",
			raw:  `{"additional_dependencies":["pandas","num`,
			ok:   true,
			want: func(f *api.Fragment) bool {
				return len(f.AdditionalDependencies) == 2 && f.AdditionalDependencies[1] == "num"
			},
		},
		{
			name: "trailing backslash",
			raw:  `{"code":"line\n\`,
			ok:   true,
			want: func(f *api.Fragment) bool { return f.Code == "line\n" },
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"code\":\"x\"}",
			ok:   true,
			want: func(f *api.Fragment) bool { return f.Code == "x" },
		},
		{
			name: "numeric field mid-token",
			raw:  `{"port":30`,
			ok:   true,
			want: func(f *api.Fragment) bool { return f.Port != nil && *f.Port == 30 },
		},
		{
			name: "no json at all",
			raw:  "thinking about it",
			ok:   false,
		},
		{
			name: "empty",
			raw:  "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, ok := Parse(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && tt.want != nil && !tt.want(frag) {
				t.Errorf("Parse(%q) = %+v", tt.raw, frag)
			}
		})
	}
}

func TestParseComplete(t *testing.T) {
	frag, err := ParseComplete("```json\n" + `{"template":"vue-developer","code":"<template/>","file_path":"app.vue"}` + "\n```")
	if err != nil {
		t.Fatalf("ParseComplete failed: %v", err)
	}
	if frag.Template != api.TemplateVue || frag.FilePath != "app.vue" {
		t.Errorf("fragment = %+v", frag)
	}

	_, err = ParseComplete(`{"code": truncated`)
	if err == nil {
		t.Fatal("expected error for invalid final document")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeStreamError {
		t.Errorf("error = %v, want stream_error", err)
	}
}
