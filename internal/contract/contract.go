// Package contract implements the deployment-time rules and source
// synthesis for ledger smart contracts: every contract's runnable
// source is predefined_classes's base class followed by the deployer's
// own class body, and every invocation re-synthesizes a small driver
// script that instantiates the class and calls one method on it.
//
// The method name and the deployer's code are both treated as
// untrusted input spliced into a script that is about to run — the
// validation in this file is what stands between that splicing and
// script injection (see Sandbox in internal/vm for where the result
// actually executes).
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/concilium/ledgercore/internal/core"
)

var (
	ErrInvalidMethodName = errors.New("invalid method name")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrForbiddenSequence = errors.New("contract code contains a forbidden sequence")
	ErrBadDefinition     = errors.New("Bad definition")
)

// methodNamePattern matches a bare ASCII identifier: no dots, no
// parens, no whitespace. A deploy-time or invoke-time method name
// failing this can't be used to break out of the synthesized script.
var methodNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateMethodName rejects anything that is not a bare identifier.
func ValidateMethodName(name string) error {
	if !methodNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidMethodName, name)
	}
	return nil
}

// argTokenPattern restricts a single invocation argument to a safe JSON
// literal grammar: a signed integer or decimal, a double-quoted string
// with backslash escapes, or one of true/false/null. Nothing matching
// this can contain an unescaped ')', ';' or newline, so splicing it
// into __instance.method(args) can never add a second statement.
var argTokenPattern = regexp.MustCompile(`^(-?[0-9]+(\.[0-9]+)?|"(?:[^"\\]|\\.)*"|true|false|null)$`)

// ValidateArgs rejects any argument token that is not a bare JSON
// literal, so a TxInvoke string cannot splice arbitrary script past its
// own call's closing parenthesis.
func ValidateArgs(args []string) error {
	for _, a := range args {
		if !argTokenPattern.MatchString(a) {
			return fmt.Errorf("%w: %q", ErrInvalidArgument, a)
		}
	}
	return nil
}

// predefinedClasses is the frozen base class every deployed contract
// extends. It is never supplied by a deployer and never changes at
// runtime, only prepended ahead of their source at deploy time.
const predefinedClasses = `
class LedgerContract {
  constructor() {
    this.__data = {};
  }
  get(key) {
    return this.__data[key];
  }
  set(key, value) {
    this.__data[key] = value;
  }
}
`

// ValidateDeployCode rejects deployment source that textually contains
// core.ContractMethodSeparator, so the marker never appears inside a
// contract's stored code.
func ValidateDeployCode(code string) error {
	if strings.Contains(code, core.ContractMethodSeparator) {
		return fmt.Errorf("%w: code must not contain the method boundary marker", ErrForbiddenSequence)
	}
	return nil
}

// Contract is the deployed, addressable unit: a frozen combination of
// predefined_classes, the deployer's class body, the most recent data
// snapshot captured from running it, and the witness group that
// deployed it.
type Contract struct {
	Address core.Address
	Code    string // predefined_classes + deployer's class source
	Data    string // JSON-encoded snapshot of the instance's __data
	GroupID string
}

// AssembleDeploySource joins the frozen base classes with the
// deployer's own class source, the full text the sandbox compiles.
func AssembleDeploySource(userCode string) string {
	return predefinedClasses + "\n" + userCode
}

var classNamePattern = regexp.MustCompile(`class\s+([A-Za-z_][A-Za-z0-9_]*)\s+extends\s+LedgerContract`)

// ExtractClassName finds the single class the deployer defined,
// extending LedgerContract. Deployment fails with ErrBadDefinition if
// none or more than one such class is present, the same rejection used
// for any other malformed deploy.
func ExtractClassName(userCode string) (string, error) {
	matches := classNamePattern.FindAllStringSubmatch(userCode, -1)
	if len(matches) != 1 {
		return "", ErrBadDefinition
	}
	return matches[0][1], nil
}

// SynthesizeInvocation builds the driver script the sandbox runs for
// one contract call: it instantiates the deployed class, restores the
// previous data snapshot, calls the requested method (or the default
// dispatch method when invocation is empty), and returns the instance's
// data for the caller to capture as the new snapshot.
//
// code is the contract's full stored source (AssembleDeploySource's
// output); className must name the single concrete class the deployer
// defined in their source, following LedgerContract's base class.
func SynthesizeInvocation(code, className, dataSnapshot, methodName string, args []string) (string, error) {
	if methodName == "" {
		methodName = "_default"
	}
	if err := ValidateMethodName(methodName); err != nil {
		return "", err
	}
	if err := ValidateArgs(args); err != nil {
		return "", err
	}

	var argList strings.Builder
	for i, a := range args {
		if i > 0 {
			argList.WriteString(", ")
		}
		argList.WriteString(a)
	}

	var b strings.Builder
	b.WriteString(code)
	b.WriteString("\n")
	fmt.Fprintf(&b, "var __instance = new %s();\n", className)
	b.WriteString("__instance.__data = JSON.parse(__dataSnapshot || \"{}\");\n")
	fmt.Fprintf(&b, "var __result = __instance.%s(%s);\n", methodName, argList.String())
	b.WriteString("JSON.stringify({result: __result, data: __instance.__data});\n")

	return b.String(), nil
}
