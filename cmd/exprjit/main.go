// Command exprjit compiles expression listings into amd64 machine code and
// inspects the generator variants available for a set of CPU features.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/exprjit/exprjit/internal/version"
)

func main() {
	doMain(os.Stdin, os.Stdout, os.Stderr, os.Args[1:], os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdIn io.Reader, stdOut, stdErr io.Writer, args []string, exit func(code int)) {
	rootCmd := newRootCmd(stdIn, stdOut, stdErr)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stdErr, "error:", err)
		exit(1)
		return
	}
	exit(0)
}

func newRootCmd(stdIn io.Reader, stdOut, stdErr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "exprjit",
		Short:         "exprjit CLI",
		Long:          "exprjit compiles floating point expression listings into amd64 SSE, AVX and FMA3 code.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetIn(stdIn)
	rootCmd.SetOut(stdOut)
	rootCmd.SetErr(stdErr)

	rootCmd.AddCommand(newCompileCmd(), newVariantsCmd(), newReplCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of exprjit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion())
		},
	}
}
