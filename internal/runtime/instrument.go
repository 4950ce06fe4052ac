package runtime

import (
	"errors"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// traceGlobal names the hidden global the host installs and instrumented
// chunks call before every statement. A script that reassigns this global
// disables its own tracing, so the name is chosen to make an accidental
// collision implausible.
const traceGlobal = "__luadbg_trace"

// Program is a compiled chunk ready to run on a Host. Callers obtain
// one from Instrument or Compile and treat it as opaque.
type Program struct {
	proto *lua.FunctionProto
}

// Name returns the chunk name the program was compiled under.
func (p *Program) Name() string {
	if p == nil || p.proto == nil {
		return ""
	}
	return p.proto.SourceName
}

// Instrument parses source and compiles it with a trace call injected
// before every statement, including statements in nested function
// literals. Empty loop and function bodies receive one trace call so a
// busy loop still yields to the trace handler.
func Instrument(source, name string) (*Program, error) {
	chunk, err := parseSource(source, name)
	if err != nil {
		return nil, err
	}
	return compileChunk(injectBlock(chunk, 0), name)
}

// Compile parses and compiles source without instrumentation.
func Compile(source, name string) (*Program, error) {
	chunk, err := parseSource(source, name)
	if err != nil {
		return nil, err
	}
	return compileChunk(chunk, name)
}

func parseSource(source, name string) ([]ast.Stmt, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		serr := &SourceError{Path: name, Err: err}
		var perr *parse.Error
		if errors.As(err, &perr) {
			serr.Line = perr.Pos.Line
			serr.Column = perr.Pos.Column
		}
		return nil, serr
	}
	return chunk, nil
}

func compileChunk(chunk []ast.Stmt, name string) (*Program, error) {
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, &SourceError{Path: name, Err: err}
	}
	return &Program{proto: proto}, nil
}

// injectBlock returns the block with a trace call inserted before each
// statement. An empty block becomes a single trace call at emptyLine when
// emptyLine is positive, so loops with empty bodies remain interruptible.
func injectBlock(stmts []ast.Stmt, emptyLine int) []ast.Stmt {
	if len(stmts) == 0 {
		if emptyLine > 0 {
			return []ast.Stmt{traceStmt(emptyLine)}
		}
		return stmts
	}
	out := make([]ast.Stmt, 0, len(stmts)*2)
	for _, st := range stmts {
		out = append(out, traceStmt(st.Line()), st)
		injectStmt(st)
	}
	return out
}

// injectStmt recurses into nested blocks and function literals.
func injectStmt(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.AssignStmt:
		injectExprs(s.Lhs)
		injectExprs(s.Rhs)
	case *ast.LocalAssignStmt:
		injectExprs(s.Exprs)
	case *ast.FuncCallStmt:
		injectExpr(s.Expr)
	case *ast.DoBlockStmt:
		s.Stmts = injectBlock(s.Stmts, 0)
	case *ast.WhileStmt:
		injectExpr(s.Condition)
		s.Stmts = injectBlock(s.Stmts, s.Line())
	case *ast.RepeatStmt:
		injectExpr(s.Condition)
		s.Stmts = injectBlock(s.Stmts, s.Line())
	case *ast.IfStmt:
		injectExpr(s.Condition)
		s.Then = injectBlock(s.Then, 0)
		s.Else = injectBlock(s.Else, 0)
	case *ast.NumberForStmt:
		injectExpr(s.Init)
		injectExpr(s.Limit)
		injectExpr(s.Step)
		s.Stmts = injectBlock(s.Stmts, s.Line())
	case *ast.GenericForStmt:
		injectExprs(s.Exprs)
		s.Stmts = injectBlock(s.Stmts, s.Line())
	case *ast.FuncDefStmt:
		injectExpr(s.Func)
	case *ast.ReturnStmt:
		injectExprs(s.Exprs)
	}
}

func injectExprs(exprs []ast.Expr) {
	for _, e := range exprs {
		injectExpr(e)
	}
}

// injectExpr walks an expression tree looking for function literals.
func injectExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ast.FunctionExpr:
		x.Stmts = injectBlock(x.Stmts, x.Line())
	case *ast.FuncCallExpr:
		injectExpr(x.Func)
		injectExpr(x.Receiver)
		injectExprs(x.Args)
	case *ast.AttrGetExpr:
		injectExpr(x.Object)
		injectExpr(x.Key)
	case *ast.TableExpr:
		for _, f := range x.Fields {
			injectExpr(f.Key)
			injectExpr(f.Value)
		}
	case *ast.LogicalOpExpr:
		injectExpr(x.Lhs)
		injectExpr(x.Rhs)
	case *ast.RelationalOpExpr:
		injectExpr(x.Lhs)
		injectExpr(x.Rhs)
	case *ast.StringConcatOpExpr:
		injectExpr(x.Lhs)
		injectExpr(x.Rhs)
	case *ast.ArithmeticOpExpr:
		injectExpr(x.Lhs)
		injectExpr(x.Rhs)
	case *ast.UnaryMinusOpExpr:
		injectExpr(x.Expr)
	case *ast.UnaryNotOpExpr:
		injectExpr(x.Expr)
	case *ast.UnaryLenOpExpr:
		injectExpr(x.Expr)
	}
}

// traceStmt builds the statement `__luadbg_trace(line)` positioned at
// line so compiled bytecode keeps accurate source positions.
func traceStmt(line int) ast.Stmt {
	fn := &ast.IdentExpr{Value: traceGlobal}
	fn.SetLine(line)
	arg := &ast.NumberExpr{Value: strconv.Itoa(line)}
	arg.SetLine(line)
	call := &ast.FuncCallExpr{Func: fn, Args: []ast.Expr{arg}}
	call.SetLine(line)
	call.SetLastLine(line)
	st := &ast.FuncCallStmt{Expr: call}
	st.SetLine(line)
	st.SetLastLine(line)
	return st
}
