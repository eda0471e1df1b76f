package quote

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// SanitizeStyles re-serializes a stylesheet without rules that would load
// remote resources: @import and @charset statements, and declarations whose
// value contains a url() pointing off-message. Comments are dropped.
// Malformed input is cut at the first parse error.
func SanitizeStyles(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	var b strings.Builder
	p := css.NewParser(parse.NewInputString(src), false)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			// io.EOF or a syntax error; either way keep what was read.
			return b.String()

		case css.AtRuleGrammar:
			switch strings.ToLower(string(data)) {
			case "@import", "@charset":
				continue
			}
			b.Write(data)
			writeValues(&b, p.Values(), true)
			b.WriteByte(';')

		case css.BeginAtRuleGrammar:
			b.Write(data)
			writeValues(&b, p.Values(), true)
			b.WriteByte('{')

		case css.QualifiedRuleGrammar:
			b.Write(data)
			writeValues(&b, p.Values(), false)
			b.WriteByte(',')

		case css.BeginRulesetGrammar:
			b.Write(data)
			writeValues(&b, p.Values(), false)
			b.WriteByte('{')

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			values := p.Values()
			if loadsRemote(values) {
				continue
			}
			b.Write(data)
			b.WriteByte(':')
			writeValues(&b, values, false)
			b.WriteByte(';')

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			b.WriteByte('}')
		}
	}
}

func writeValues(b *strings.Builder, values []css.Token, leadingSpace bool) {
	if leadingSpace && len(values) > 0 && values[0].TokenType != css.WhitespaceToken {
		b.WriteByte(' ')
	}
	for _, v := range values {
		b.Write(v.Data)
	}
}

// loadsRemote reports whether a declaration value references a resource
// by absolute or protocol-relative URL.
func loadsRemote(values []css.Token) bool {
	var v strings.Builder
	for _, t := range values {
		v.Write(t.Data)
	}
	s := strings.ToLower(v.String())
	i := strings.Index(s, "url(")
	for i >= 0 {
		arg := strings.TrimLeft(s[i+len("url("):], " \t\"'")
		if strings.HasPrefix(arg, "http:") || strings.HasPrefix(arg, "https:") || strings.HasPrefix(arg, "//") {
			return true
		}
		next := strings.Index(s[i+1:], "url(")
		if next < 0 {
			break
		}
		i += next + 1
	}
	return false
}
