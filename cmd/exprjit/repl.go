package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/exprjit/exprjit"
	"github.com/exprjit/exprjit/express"
)

const replHelp = `Enter ops such as "r2 = add r0, r1", one per line. Commands:
  :list     print the expression
  :compile  compile the expression
  :undo     remove the last op
  :reset    start a new expression
  :quit     exit
`

func newReplCmd() *cobra.Command {
	var (
		flags   compileFlags
		history string
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Build and compile an expression interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := flags.elementType()
			if err != nil {
				return err
			}
			c, err := flags.compiler(cmd)
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "exprjit> ",
				HistoryFile: history,
				Stdin:       io.NopCloser(cmd.InOrStdin()),
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("failed to start readline: %w", err)
			}
			defer rl.Close()
			return (&repl{cmd: cmd, compiler: c, expr: express.New(typ)}).run(rl)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&history, "history", filepath.Join(os.TempDir(), "exprjit_history.txt"), "history file")
	return cmd
}

// lineReader is the part of *readline.Instance the repl uses.
type lineReader interface {
	Readline() (string, error)
}

type repl struct {
	cmd      *cobra.Command
	compiler *exprjit.Compiler
	expr     *express.Expression
}

func (r *repl) run(in lineReader) error {
	out := r.cmd.OutOrStdout()
	fmt.Fprint(out, replHelp)
	for {
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if err != nil {
			// io.EOF ends the session.
			return nil
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case line == ":quit" || line == "exit":
			return nil
		case line == ":list":
			fmt.Fprint(out, r.expr.String())
		case line == ":reset":
			r.expr = express.New(r.expr.Type())
		case line == ":undo":
			ops := r.expr.Ops()
			r.expr = express.New(r.expr.Type())
			for i := 0; i+1 < len(ops); i++ {
				r.expr.Add(ops[i])
			}
		case line == ":compile":
			cell, err := r.compiler.Compile(r.cmd.Context(), r.expr)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			printCell(r.cmd, cell, true, false)
		case strings.HasPrefix(line, ":"):
			fmt.Fprintf(out, "unknown command %s\n", line)
			fmt.Fprint(out, replHelp)
		default:
			op, err := express.ParseOp(line)
			if err == nil {
				err = r.validate(op)
			}
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			r.expr.Add(op)
		}
	}
}

// validate checks op on its own so that a bad line is rejected when typed.
func (r *repl) validate(op express.Op) error {
	single := express.New(r.expr.Type())
	single.Add(op)
	return single.Validate()
}
