package smt

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// responseLexer tokenises SMT-LIB2's check-sat replies and the occasional
// `(error "...")` an external solver process writes to stdout.
var responseLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Paren", Pattern: `[()]`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// response is the grammar participle builds its parser from: either a
// bare verdict token, or an `(error "message")` s-expression.
type response struct {
	Verdict string     `@Ident`
	Error   *errorSexp `| @@`
}

type errorSexp struct {
	Message string `"(" "error" @String ")"`
}

var responseParser = buildResponseParser()

func buildResponseParser() *participle.Parser[response] {
	p, err := participle.Build[response](
		participle.Lexer(responseLexer),
		participle.Elide("Whitespace"),
	)
	if err != nil {
		panic(err)
	}
	return p
}

// parseResponse parses one line of solver stdout into a Verdict. A
// malformed or unrecognised line parses as Unknown rather than erroring,
// since the caller (ProcessSolver.Check) treats an unparseable reply the
// same way it treats a solver-reported "unknown".
func parseResponse(line string) Verdict {
	resp, err := responseParser.ParseString("", line)
	if err != nil {
		return Unknown
	}
	if resp.Error != nil {
		return Unknown
	}
	switch resp.Verdict {
	case "sat":
		return Sat
	case "unsat":
		return Unsat
	default:
		return Unknown
	}
}
