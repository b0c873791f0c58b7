package jsengine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// token is one significant lexical token. depth counts the enclosing
// brackets, braces, parentheses and template substitutions; a closing token
// has the depth of its opener.
type token struct {
	tt    js.TokenType
	text  string
	start int
	end   int
	depth int
}

func (t token) is(tt js.TokenType) bool {
	return t.tt == tt
}

// tokenize splits source into significant tokens with their byte offsets.
// Whitespace and comments are dropped.
func tokenize(src string) ([]token, error) {
	lex := js.NewLexer(parse.NewInputString(src))
	var (
		toks  []token
		pos   int
		depth int
	)
	for {
		tt, data := lex.Next()
		if (tt == js.DivToken || tt == js.DivEqToken) && regexAllowed(toks) {
			tt, data = lex.RegExp()
		}
		if tt == js.ErrorToken {
			if err := lex.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, lexError(err)
			}
			return toks, nil
		}

		t := token{tt: tt, text: string(data), start: pos, end: pos + len(data)}
		pos = t.end
		switch tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
			continue
		case js.CloseBraceToken, js.CloseParenToken, js.CloseBracketToken, js.TemplateEndToken:
			depth--
			t.depth = depth
		case js.OpenBraceToken, js.OpenParenToken, js.OpenBracketToken, js.TemplateStartToken:
			t.depth = depth
			depth++
		case js.TemplateMiddleToken:
			t.depth = depth - 1
		default:
			t.depth = depth
		}
		toks = append(toks, t)
	}
}

// regexAllowed reports whether a slash after toks starts a regular
// expression rather than a division.
func regexAllowed(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch prev := toks[len(toks)-1].tt; prev {
	case js.CloseParenToken, js.CloseBracketToken, js.IncrToken, js.DecrToken,
		js.ThisToken, js.SuperToken, js.TrueToken, js.FalseToken, js.NullToken,
		js.TemplateToken, js.TemplateEndToken, js.StringToken, js.RegExpToken:
		return false
	case js.OfToken:
		return true
	default:
		if js.IsNumeric(prev) || js.IsIdentifier(prev) || prev == js.PrivateIdentifierToken {
			return false
		}
		return js.IsPunctuator(prev) || js.IsOperator(prev) || js.IsReservedWord(prev)
	}
}

// parseSource parses source as a module, or as a function body for legacy
// code, which may return at the top level.
func parseSource(src string, legacy bool) (*js.AST, error) {
	ast, err := js.Parse(parse.NewInputString(src), js.Options{Inline: legacy})
	if err != nil {
		return nil, lexError(err)
	}
	return ast, nil
}

func lexError(err error) error {
	var perr *parse.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("line %d: %s", perr.Line, perr.Message)
	}
	return err
}

// stripHashbang blanks a leading #! line so the body can be wrapped.
func stripHashbang(src string) string {
	if !strings.HasPrefix(src, "#!") {
		return src
	}
	if i := strings.IndexAny(src, "\r\n"); i >= 0 {
		return src[i:]
	}
	return ""
}

func at(toks []token, i int) token {
	if i < 0 || i >= len(toks) {
		return token{}
	}
	return toks[i]
}

func precededByDot(toks []token, i int) bool {
	prev := at(toks, i-1)
	return prev.is(js.DotToken) || prev.is(js.OptChainToken)
}

// isMethodDefinition reports whether the parenthesis at token j opens the
// parameters of a method named import rather than a call.
func isMethodDefinition(toks []token, j int) bool {
	open := toks[j]
	for k := j + 1; k < len(toks); k++ {
		if toks[k].depth == open.depth && toks[k].is(js.CloseParenToken) {
			return at(toks, k+1).is(js.OpenBraceToken)
		}
	}
	return false
}
