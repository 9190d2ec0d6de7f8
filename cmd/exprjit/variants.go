package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/features"
	"github.com/exprjit/exprjit/internal/generator"
	"github.com/exprjit/exprjit/internal/platform"
)

func newVariantsCmd() *cobra.Command {
	var (
		cpuFeatures string
		typ         string
	)
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "Print the generator variants and what they can lower",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := features.Mask(platform.HostCpuFeatures())
			if cpuFeatures != "" {
				var err error
				if flags, err = platform.ParseCpuFeatureFlags(cpuFeatures); err != nil {
					return err
				}
			}
			t, err := express.ParseType(typ)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), variantsTree(flags, t).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&cpuFeatures, "features", "",
		"comma-separated CPU features, e.g. sse2,sse4.1,avx. Defaults to the host CPU")
	cmd.Flags().StringVar(&typ, "type", "float32", "element type: float32 or float64")
	return cmd
}

// variantsTree renders each variant with its model and op table, or the reason
// it is unavailable.
func variantsTree(flags platform.CpuFeatureFlags, typ express.Type) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("cpu features: %s", flags))
	for _, v := range generator.AllVariants() {
		g, err := generator.New(v, typ, flags)
		if err != nil {
			tree.AddMetaNode("unavailable", fmt.Sprintf("%s (requires %s)", v, v.Requires()))
			continue
		}
		branch := tree.AddMetaBranch(v.Packing().String(), v.String())
		branch.AddNode("lanes: " + fmt.Sprint(g.Lanes()))
		branch.AddNode("model: " + strings.Join(g.Model().Flags(), " "))
		var ops, missing []string
		for _, op := range express.AllOpTypes() {
			if g.Supports(op) {
				ops = append(ops, op.String())
			} else {
				missing = append(missing, op.String())
			}
		}
		branch.AddNode("ops: " + strings.Join(ops, " "))
		if len(missing) > 0 {
			branch.AddNode("unsupported: " + strings.Join(missing, " "))
		}
	}
	return tree
}
