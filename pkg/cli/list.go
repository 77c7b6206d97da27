package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
)

type catalogueEntry struct {
	generators.Info `yaml:",inline"`
	Parameters      []params.Spec `yaml:"parameters"`
}

type catalogue struct {
	Generators []catalogueEntry `yaml:"generators"`
	Sinks      []sink.Info      `yaml:"sinks,omitempty"`
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [generator...]",
		Short: "Print the generator catalogue as YAML",
		Long: `Print every registered generator with its parameters, bounds, options and
defaults. The output is a valid starting point for a parameters file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			withSinks, _ := cmd.Flags().GetBool("sinks")
			c, err := buildCatalogue(args, withSinks)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("failed to encode catalogue: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().Bool("sinks", false, "Also list the available sink types")
	return cmd
}

func buildCatalogue(keys []string, withSinks bool) (catalogue, error) {
	var c catalogue
	if len(keys) == 0 {
		for _, reg := range generators.Registered() {
			c.Generators = append(c.Generators, catalogueEntry{Info: reg.Info, Parameters: reg.Parameters})
		}
	}
	for _, key := range keys {
		reg, ok := generators.Lookup(key)
		if !ok {
			return c, fmt.Errorf("%w: %s (have %v)", apperrors.ErrUnknownGenerator, key, generators.Keys())
		}
		c.Generators = append(c.Generators, catalogueEntry{Info: reg.Info, Parameters: reg.Parameters})
	}
	if withSinks {
		c.Sinks = sink.Registered()
	}
	return c, nil
}
