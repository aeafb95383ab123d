package imports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJavaScriptForms(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{"es6 from", `import React from 'react';`, []string{"react"}},
		{"named from", `import { useState, useEffect } from 'react';`, []string{"react"}},
		{"namespace from", `import * as path from 'path';`, []string{"path"}},
		{"side effect", `import './styles.css';`, []string{"./styles.css"}},
		{"require", `const fs = require('fs');`, []string{"fs"}},
		{"dynamic", `const mod = await import('./lazy');`, []string{"./lazy"}},
		{"two requires", `const a = require('a'); const b = require('b');`, []string{"a", "b"}},
		{"commented line still matches", `// import x from 'x';`, []string{"x"}},
		{"no import", `const x = 1;`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer()
			edges := a.AnalyzeFile(tt.code, "typescript", "src/app.ts")
			var got []string
			for _, e := range edges {
				got = append(got, e.Imported)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestJSFromWinsOverSideEffect(t *testing.T) {
	a := NewAnalyzer()
	edges := a.AnalyzeFile(`import React from 'react';`, "javascript", "a.js")
	require.Len(t, edges, 1)
	require.Equal(t, "react", edges[0].Imported)
}

func TestJSRequireAndFromCountDistinctModulesOnce(t *testing.T) {
	a := NewAnalyzer()
	edges := a.AnalyzeFile(`import x from 'mod-a'; const y = require('mod-b');`, "javascript", "a.js")
	require.Len(t, edges, 2)
	require.Equal(t, "mod-a", edges[0].Imported)
	require.Equal(t, "mod-b", edges[1].Imported)
}

func TestPython(t *testing.T) {
	code := "import os\nfrom collections import defaultdict\nimport numpy.linalg\n"
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "python", "main.py")
	require.Len(t, edges, 3)
	require.Equal(t, "os", edges[0].Imported)
	require.Equal(t, "collections", edges[1].Imported)
	require.Equal(t, "numpy.linalg", edges[2].Imported)
	require.Equal(t, 1, edges[0].Line)
	require.Equal(t, 2, edges[1].Line)
}

func TestJava(t *testing.T) {
	code := "import java.util.List;\nimport java.io.*;\n"
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "java", "Main.java")
	require.Len(t, edges, 2)
	require.Equal(t, "java.util.List", edges[0].Imported)
	require.Equal(t, "java.io.*", edges[1].Imported)
}

func TestGoSingleAndBlock(t *testing.T) {
	code := `package main

import "fmt"

import (
	"os"
	stdpath "path/filepath"
)
`
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "go", "main.go")
	var got []string
	for _, e := range edges {
		got = append(got, e.Imported)
	}
	require.Equal(t, []string{"fmt", "os", "path/filepath"}, got)
}

func TestRust(t *testing.T) {
	code := "use std::collections::HashMap;\nextern crate serde;\npub use crate::util;\n"
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "rust", "lib.rs")
	require.Len(t, edges, 3)
	require.Equal(t, "std::collections::HashMap", edges[0].Imported)
	require.Equal(t, "serde", edges[1].Imported)
	require.Equal(t, "crate::util", edges[2].Imported)
}

func TestCIncludes(t *testing.T) {
	code := "#include <stdio.h>\n#include \"local.h\"\n"
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "c", "main.c")
	require.Len(t, edges, 2)
	require.Equal(t, "stdio.h", edges[0].Imported)
	require.Equal(t, "local.h", edges[1].Imported)
}

func TestCSharpExcludesAliases(t *testing.T) {
	code := "using System.Collections;\nusing Alias = System.Text;\n"
	a := NewAnalyzer()
	edges := a.AnalyzeFile(code, "csharp", "Program.cs")
	require.Len(t, edges, 1)
	require.Equal(t, "System.Collections", edges[0].Imported)
}

func TestUnsupportedLanguage(t *testing.T) {
	a := NewAnalyzer()
	require.Nil(t, a.AnalyzeFile("import x", "cobol", "x.cob"))
	require.False(t, IsLanguageSupported("cobol"))
	require.True(t, IsLanguageSupported("TypeScript"))
	require.True(t, IsLanguageSupported("go"))
}

func TestFrequencyAndTopImported(t *testing.T) {
	a := NewAnalyzer()
	a.AnalyzeFile(`import R from 'r';`, "javascript", "one.js")
	a.AnalyzeFile(`import R from 'r';`, "javascript", "two.js")
	a.AnalyzeFile(`import R from 'r';`, "javascript", "three.js")
	a.AnalyzeFile(`import L from 'l';`, "javascript", "one.js")

	require.Equal(t, 3, a.Frequency("r"))
	require.Equal(t, 1, a.Frequency("l"))
	require.Equal(t, 4, a.TotalImports())

	top := a.TopImported(2)
	require.Equal(t, []ModuleCount{{Module: "r", Count: 3}, {Module: "l", Count: 1}}, top)
}

func TestImportsOfAndImportersOf(t *testing.T) {
	a := NewAnalyzer()
	a.AnalyzeFile("import 'a';\nimport 'b';", "javascript", "x.js")
	a.AnalyzeFile("import 'a';", "javascript", "y.js")

	require.Equal(t, []string{"a", "b"}, a.ImportsOf("x.js"))
	require.Equal(t, []string{"x.js", "y.js"}, a.ImportersOf("a"))
}

func TestRemoveFileAndReset(t *testing.T) {
	a := NewAnalyzer()
	a.AnalyzeFile("import 'a';", "javascript", "x.js")
	a.AnalyzeFile("import 'a';", "javascript", "y.js")

	a.RemoveFile("x.js")
	require.Equal(t, 1, a.Frequency("a"))

	a.Reset()
	require.Equal(t, 0, a.TotalImports())
	require.Equal(t, 0, a.MaxFrequency())
}

func TestBuildGraph(t *testing.T) {
	a := NewAnalyzer()
	a.AnalyzeFile("import 'a';\nimport 'a';", "javascript", "x.js")

	graph := a.BuildGraph()
	require.Len(t, graph.Edges, 2)
	require.Equal(t, 2, graph.Frequency["a"])
	require.Equal(t, 2, a.MaxFrequency())
}
