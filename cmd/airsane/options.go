package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mzyy94/airsane/internal/sane"
)

type optionEntry struct {
	Index      int      `yaml:"index"`
	Name       string   `yaml:"name"`
	Title      string   `yaml:"title"`
	Type       string   `yaml:"type"`
	Unit       string   `yaml:"unit,omitempty"`
	Value      string   `yaml:"value,omitempty"`
	Constraint string   `yaml:"constraint,omitempty"`
	Flags      []string `yaml:"flags,omitempty"`
}

func newOptionsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show the options of a scanner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q", format)
			}
			s, err := openSession(a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.connect(cmd.Context(), a.cfg.Device)
			if err != nil {
				return err
			}
			defer sc.Disconnect()

			opts, err := sc.Options()
			if err != nil {
				return err
			}
			entries := make([]optionEntry, 0, len(opts))
			for _, o := range opts {
				entries = append(entries, describeOption(o))
			}

			out := cmd.OutOrStdout()
			if format == "yaml" {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(map[string]any{"device": sc.DeviceName(), "options": entries}); err != nil {
					return err
				}
				return enc.Close()
			}
			fmt.Fprintf(out, "%s (%s)\n", sc.Name(), sc.DeviceName())
			writeOptions(out, entries)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, yaml)")
	return cmd
}

func describeOption(o *sane.Option) optionEntry {
	e := optionEntry{
		Index: o.Index(),
		Name:  o.Name().String(),
		Title: o.Title().String(),
		Type:  o.Type().String(),
	}
	if u := o.Unit(); u != sane.UnitNone {
		e.Unit = u.String()
	}
	if !o.IsActive() {
		e.Flags = append(e.Flags, "inactive")
	} else if v, ok, err := o.Get(); err != nil {
		e.Value = "<" + err.Error() + ">"
	} else if ok {
		e.Value = v.String()
	}
	if !o.IsSettable() && o.Type() != sane.TypeGroup {
		e.Flags = append(e.Flags, "read-only")
	}
	e.Constraint = formatConstraint(o.Constraint())
	return e
}

func formatConstraint(c sane.Constraint) string {
	switch c.Kind {
	case sane.ConstraintIntRange:
		return rangeString(fmt.Sprint(c.Range.Min), fmt.Sprint(c.Range.Max), c.Range.Quant != 0, fmt.Sprint(c.Range.Quant))
	case sane.ConstraintFixedRange:
		lo, hi, q := c.FixedRange()
		return rangeString(lo.String(), hi.String(), q != 0, q.String())
	case sane.ConstraintIntList:
		parts := make([]string, len(c.Words))
		for i, w := range c.Words {
			parts[i] = fmt.Sprint(w)
		}
		return strings.Join(parts, "|")
	case sane.ConstraintFixedList:
		fs := c.Fixeds()
		parts := make([]string, len(fs))
		for i, f := range fs {
			parts[i] = f.String()
		}
		return strings.Join(parts, "|")
	case sane.ConstraintStringList:
		parts := make([]string, len(c.Strings))
		for i, s := range c.Strings {
			parts[i] = s.String()
		}
		return strings.Join(parts, "|")
	case sane.ConstraintUnsupported:
		return "unsupported"
	}
	return ""
}

func rangeString(lo, hi string, quantized bool, quant string) string {
	if quantized {
		return lo + ".." + hi + " step " + quant
	}
	return lo + ".." + hi
}

func writeOptions(w io.Writer, entries []optionEntry) {
	for _, e := range entries {
		if e.Type == sane.TypeGroup.String() {
			fmt.Fprintf(w, "  %s:\n", e.Title)
			continue
		}
		line := "    --" + e.Name
		if e.Constraint != "" {
			line += " " + e.Constraint
		}
		if e.Unit != "" {
			line += " " + e.Unit
		}
		if e.Value != "" {
			line += " [" + e.Value + "]"
		}
		if len(e.Flags) > 0 {
			line += " (" + strings.Join(e.Flags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}
