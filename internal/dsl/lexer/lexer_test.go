// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/dsl/lexer"
	"github.com/brane-org/brane/internal/dsl/token"
)

func tokenTypes(t *testing.T, src string) []token.Type {
	t.Helper()
	l := lexer.New("test.bs", src)
	toks, errs := l.Tokenize()
	require.Empty(t, errs)
	types := make([]token.Type, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	return types
}

func TestLexerBasicProgram(t *testing.T) {
	src := `let x := 1 + 2 * 3; return x;`
	types := tokenTypes(t, src)
	require.Equal(t, []token.Type{
		token.KwLet, token.Ident, token.ColonAssign, token.Integer,
		token.Plus, token.Integer, token.Star, token.Integer, token.Semicolon,
		token.KwReturn, token.Ident, token.Semicolon, token.EOF,
	}, types)
}

func TestLexerSemverLiteral(t *testing.T) {
	l := lexer.New("test.bs", "1.2.3")
	tok := l.Next()
	require.Equal(t, token.Semver, tok.Type)
	require.Equal(t, "1.2.3", tok.Literal)
}

func TestLexerRealLiteral(t *testing.T) {
	l := lexer.New("test.bs", "1.5")
	tok := l.Next()
	require.Equal(t, token.Real, tok.Type)
	require.Equal(t, "1.5", tok.Literal)
}

func TestLexerStringEscapes(t *testing.T) {
	l := lexer.New("test.bs", `"a\nb\"c"`)
	tok := l.Next()
	require.Equal(t, token.String, tok.Type)
	require.Equal(t, "a\nb\"c", tok.Literal)
}

func TestLexerUnterminatedString(t *testing.T) {
	l := lexer.New("test.bs", `"abc`)
	tok := l.Next()
	require.Equal(t, token.Illegal, tok.Type)
	require.NotEmpty(t, l.Errors())
}

func TestLexerPositions(t *testing.T) {
	l := lexer.New("test.bs", "let\nx := 1;")
	toks, errs := l.Tokenize()
	require.Empty(t, errs)
	require.Equal(t, 1, toks[0].Pos.Line)
	require.Equal(t, 2, toks[1].Pos.Line)
}

func TestLexerKeywords(t *testing.T) {
	types := tokenTypes(t, "if else while for func class return import on parallel let new true false null")
	require.Equal(t, []token.Type{
		token.KwIf, token.KwElse, token.KwWhile, token.KwFor, token.KwFunc,
		token.KwClass, token.KwReturn, token.KwImport, token.KwOn, token.KwParallel,
		token.KwLet, token.KwNew, token.True, token.False, token.Null, token.EOF,
	}, types)
}
