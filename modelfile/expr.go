package modelfile

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/kintsdev/normup"
	"github.com/pkg/errors"
)

type compiledSet struct {
	attr string
	prog *vm.Program
}

// compileSetter builds a setter from set expressions and an optional fail
// expression. A fail expression yielding a non-empty string aborts the
// setter with that message.
func compileSetter(sets []SetExpr, fail string) (normup.Setter, error) {
	if len(sets) == 0 && fail == "" {
		return nil, nil
	}
	var failProg *vm.Program
	if fail != "" {
		p, err := expr.Compile(fail)
		if err != nil {
			return nil, errors.Wrap(err, "compile fail")
		}
		failProg = p
	}
	progs := make([]compiledSet, 0, len(sets))
	for _, s := range sets {
		if s.Attr == "" {
			return nil, errors.New("set entry without attr")
		}
		p, err := expr.Compile(s.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "compile set %s", s.Attr)
		}
		progs = append(progs, compiledSet{attr: s.Attr, prog: p})
	}
	return func(value any, rec *normup.Record) error {
		if failProg != nil {
			out, err := expr.Run(failProg, map[string]any{"val": value, "record": rec.Values()})
			if err != nil {
				return errors.Wrap(err, "fail expression")
			}
			if msg, ok := out.(string); ok && msg != "" {
				return errors.New(msg)
			}
			if b, ok := out.(bool); ok && b {
				return errors.Errorf("invalid value %v", value)
			}
		}
		for _, s := range progs {
			// later entries see what earlier ones staged
			out, err := expr.Run(s.prog, map[string]any{"val": value, "record": rec.Values()})
			if err != nil {
				return errors.Wrapf(err, "set %s", s.attr)
			}
			rec.Set(s.attr, out)
		}
		return nil
	}, nil
}

func compileGetter(src string) (normup.Getter, error) {
	if src == "" {
		return nil, nil
	}
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, errors.Wrap(err, "compile get")
	}
	return func(rec *normup.Record) any {
		out, err := expr.Run(prog, map[string]any{"record": rec.Values()})
		if err != nil {
			return nil
		}
		return out
	}, nil
}
