package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/exprjit/exprjit/express"
)

func newCompileCmd() *cobra.Command {
	var (
		flags   compileFlags
		listing bool
		disasm  bool
	)
	cmd := &cobra.Command{
		Use:   "compile <path to listing|->",
		Short: "Compile an expression listing",
		Long: "Compile an expression listing, one op per line such as \"r2 = add r0, r1\", " +
			"and print the emitted instructions. Use - to read the listing from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readListing(cmd, args[0])
			if err != nil {
				return err
			}
			typ, err := flags.elementType()
			if err != nil {
				return err
			}
			expr, err := express.Parse(typ, src)
			if err != nil {
				return fmt.Errorf("error parsing %s: %w", args[0], err)
			}
			c, err := flags.compiler(cmd)
			if err != nil {
				return err
			}
			cell, err := c.Compile(cmd.Context(), expr)
			if err != nil {
				return fmt.Errorf("error compiling %s: %w", args[0], err)
			}
			printCell(cmd, cell, listing, disasm)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&listing, "listing", true, "print the emitted instructions")
	cmd.Flags().BoolVar(&disasm, "disasm", false, "print the disassembly of the machine code")
	return cmd
}

func readListing(cmd *cobra.Command, path string) (string, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("error reading listing: %w", err)
	}
	return string(b), nil
}
