// Package sdk classifies Cadence templates and executes them against a
// Flow access node.
package sdk

import (
	"regexp"
	"strings"
)

// TemplateType is the kind of a Cadence source template.
type TemplateType string

const (
	TypeScript      TemplateType = "script"
	TypeTransaction TemplateType = "transaction"
	TypeContract    TemplateType = "contract"
	TypeUnknown     TemplateType = "unknown"
)

// Arg is a declared template parameter.
type Arg struct {
	Name string
	Type string
}

// TemplateInfo describes a template.
type TemplateInfo struct {
	Type    TemplateType
	Signers int   // number of prepare parameters, transactions only
	Args    []Arg // parameters of transaction(...) or main(...)
}

var (
	transactionRe = regexp.MustCompile(`(?m)^\s*transaction\s*[({]`)
	prepareRe     = regexp.MustCompile(`\bprepare\s*\(`)
	contractRe    = regexp.MustCompile(`\bcontract\s+(interface\s+)?[A-Za-z_]\w*`)
	scriptRe      = regexp.MustCompile(`\bfun\s+main\s*\(`)
)

// Classify determines the template type, signer count and arguments of code.
func Classify(code string) TemplateInfo {
	src := stripLiterals(code)

	if loc := transactionRe.FindStringIndex(src); loc != nil {
		info := TemplateInfo{Type: TypeTransaction}
		if src[loc[1]-1] == '(' {
			info.Args = parseParams(enclosed(src, loc[1]))
		}
		if p := prepareRe.FindStringIndex(src); p != nil {
			info.Signers = len(parseParams(enclosed(src, p[1])))
		}
		return info
	}
	if contractRe.MatchString(src) {
		return TemplateInfo{Type: TypeContract}
	}
	if loc := scriptRe.FindStringIndex(src); loc != nil {
		return TemplateInfo{Type: TypeScript, Args: parseParams(enclosed(src, loc[1]))}
	}
	return TemplateInfo{Type: TypeUnknown}
}

// stripLiterals removes comments and empties string literals so keywords
// inside them are not matched. Block comments nest.
func stripLiterals(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"':
			b.WriteString(`""`)
			for i++; i < len(code) && code[i] != '"' && code[i] != '\n'; i++ {
				if code[i] == '\\' {
					i++
				}
			}
			if i < len(code) && code[i] == '\n' {
				i-- // unterminated; keep the newline
			}
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			for i < len(code) && code[i] != '\n' {
				i++
			}
			if i < len(code) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			depth := 0
			for ; i < len(code); i++ {
				if code[i] == '/' && i+1 < len(code) && code[i+1] == '*' {
					depth++
					i++
				} else if code[i] == '*' && i+1 < len(code) && code[i+1] == '/' {
					depth--
					i++
					if depth == 0 {
						break
					}
				}
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// enclosed returns the text from start up to the parenthesis closing the
// one just before start.
func enclosed(src string, start int) string {
	depth := 1
	for i := start; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[start:i]
			}
		}
	}
	return src[start:]
}

// parseParams splits "a: Int, b: {String: Int}" into Args on top-level commas.
func parseParams(list string) []Arg {
	var args []Arg
	depth, from := 0, 0
	emit := func(part string) {
		part = strings.TrimSpace(part)
		if part == "" {
			return
		}
		name, typ, _ := strings.Cut(part, ":")
		args = append(args, Arg{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)})
	}
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '{', '[', '<':
			depth++
		case ')', '}', ']', '>':
			depth--
		case ',':
			if depth == 0 {
				emit(list[from:i])
				from = i + 1
			}
		}
	}
	emit(list[from:])
	return args
}

var buttonLabels = map[TemplateType]string{
	TypeScript:      "Execute Script",
	TypeTransaction: "Send Transaction",
	TypeUnknown:     "Unknown Template",
}

// ButtonLabel returns the action label for a template.
func ButtonLabel(t TemplateType, signers int) string {
	if t == TypeContract {
		return "Not Supported"
	}
	if signers > 1 {
		// TODO: support multi-signer transactions once an authorizer can
		// collect more than one signature.
		return "Multisig is not Supported"
	}
	if label, ok := buttonLabels[t]; ok {
		return label
	}
	return buttonLabels[TypeUnknown]
}

// Disabled reports whether the run action is unavailable.
func Disabled(info TemplateInfo, editorReady bool) bool {
	return info.Type == TypeUnknown ||
		info.Type == TypeContract ||
		!editorReady ||
		info.Signers > 1
}

// SignableWithWallet reports whether a single wallet can sign the template.
func SignableWithWallet(info TemplateInfo) bool {
	return info.Type == TypeTransaction && info.Signers == 1
}

// BaseTransaction is the starter template.
const BaseTransaction = `import FungibleToken from 0x9a0766d93b6608b7

transaction(amount: UFix64) {
    prepare(signer: AuthAccount) {
        log(signer.address)
    }

    execute {
        log(amount)
    }
}
`
