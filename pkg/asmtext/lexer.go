// Package asmtext is a minimal textual assembler and debug stringer for
// ISA-V programs. It exists for tests, the CLI, and diagnostic output —
// it is not the binary codec (pkg/codec owns that) and makes no claim to
// be a complete disassembler.
package asmtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes the textual ISA-V assembly dialect: one instruction per
// line, e.g. `ADD t0.xyz <- in0, c0 ; end`.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `#[^\n]*`, nil},
		{"Arrow", `<-`, nil},
		{"Swizzle", `\.[xyzwXYZW]+`, nil},
		{"Reg", `[a-zA-Z][a-zA-Z]*[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punct", `[(),;\-|!]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
