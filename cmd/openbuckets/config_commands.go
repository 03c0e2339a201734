package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"openbuckets/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Bucket configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var global bool
	var force bool
	var ext string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample .bucket-include.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.DefaultGlobalDir()
			if !global {
				base, err := ctx.baseDir()
				if err != nil {
					return err
				}
				dir = base
			}
			name := config.LocalFileName
			if e := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), "."); e != "" {
				name = config.SkillFileName(e)
			}
			target := filepath.Join(dir, name)
			if err := config.CreateSample(target, force); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return fmt.Errorf("%w (use --force to replace it)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write to the global profile directory instead of the base directory")
	cmd.Flags().StringVar(&ext, "ext", "", "Write a skill file for this extension (e.g. go)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show FILE",
		Short: "Print the effective configuration a drop of FILE would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.baseDir()
			if err != nil {
				return err
			}
			resolver := config.NewResolver(config.DefaultGlobalDir())
			resolved := resolver.Resolve(args[0], base)
			data, err := resolved.Config.MarshalTOML()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "# Base: %s\n", titleLabel(string(resolved.BaseSource)))
			skill := titleLabel(string(resolved.SkillSource))
			if resolved.SkillPath != "" {
				skill += " (" + resolved.SkillPath + ")"
			}
			fmt.Fprintf(out, "# Skill: %s\n", skill)
			fmt.Fprintln(out, string(data))
			fmt.Fprintln(out, renderLayerTable(resolved.Layers, colorize))
			return nil
		},
	}
}

func renderLayerTable(layers []config.LayerStatus, colorize bool) string {
	rows := make([][]string, 0, len(layers))
	for _, layer := range layers {
		state := titleLabel(string(layer.State))
		if layer.State == config.LayerInvalid && layer.Err != nil {
			state += ": " + layer.Err.Error()
		}
		rows = append(rows, []string{titleLabel(layer.Name), state, layer.Path})
	}
	return renderTable([]string{"Layer", "State", "Path"}, rows, colorize)
}

// titleLabel turns identifiers like "local-skill" into "Local Skill".
func titleLabel(value string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(value, "-", " "))
}
