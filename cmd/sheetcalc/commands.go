package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/cmd/internal/cliutil"
	"github.com/sheetcalc/sheetcalc/formula"
)

// errInconsistent is returned by check when Verify fails.
var errInconsistent = errors.New("spreadsheet is inconsistent")

func (c *cli) evalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval EXPR [NAME=VALUE...]",
		Short: "Evaluate a standalone formula",
		Example: `  sheetcalc eval "2*(3+4)"
  sheetcalc eval "x/y" x=1 y=4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formula.Parse(args[0])
			if err != nil {
				return err
			}
			vars := make(map[string]float64, len(args)-1)
			for _, arg := range args[1:] {
				name, raw, err := cliutil.SplitAssignment(arg)
				if err != nil {
					return err
				}
				v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
				if err != nil {
					return fmt.Errorf("variable %s: %w", name, err)
				}
				vars[name] = v
			}
			res := f.Evaluate(func(name string) (float64, error) {
				v, ok := vars[name]
				if !ok {
					return 0, errors.New("undefined")
				}
				return v, nil
			})
			if ev, ok := res.Err(); ok {
				return fmt.Errorf("evaluate %s: %s", f, ev.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// openOrNew opens the document at path, or returns an empty spreadsheet if
// it does not exist.
func (c *cli) openOrNew(path string) (*sheetcalc.Spreadsheet, error) {
	s, err := sheetcalc.OpenFile(path, c.sheetOptions()...)
	if errors.Is(err, fs.ErrNotExist) {
		return sheetcalc.New(c.sheetOptions()...), nil
	}
	return s, err
}

func (c *cli) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set FILE NAME=RAW...",
		Short: "Set cells in a document, creating it if needed",
		Long: `Set cells in a document. Each RAW is a number, text, or '=' followed
by a formula; an empty RAW clears the cell. Edits are applied in order and
the document is saved only if all of them succeed.`,
		Example: `  sheetcalc set book.json A1=2 "B1==A1*3"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := c.openOrNew(args[0])
			if err != nil {
				return err
			}
			for _, arg := range args[1:] {
				name, raw, err := cliutil.SplitAssignment(arg)
				if err != nil {
					return err
				}
				affected, err := sheet.SetContentsOfCell(name, raw)
				if err != nil {
					return fmt.Errorf("set %s: %w", name, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(affected, " "))
			}
			return sheet.SaveFile(args[0])
		},
	}
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get FILE NAME",
		Short: "Print the contents and value of a cell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := sheetcalc.OpenFile(args[0], c.sheetOptions()...)
			if err != nil {
				return err
			}
			contents, err := sheet.GetCellContents(args[1])
			if err != nil {
				return err
			}
			value, _ := sheet.GetCellValue(args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", contents, value)
			return nil
		},
	}
}

type cellRow struct {
	Name     string `json:"name"`
	Contents string `json:"contents"`
	Value    string `json:"value"`
}

func (c *cli) showCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "List every nonempty cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := sheetcalc.OpenFile(args[0], c.sheetOptions()...)
			if err != nil {
				return err
			}
			var rows []cellRow
			for _, name := range sheet.NonemptyCellNames() {
				contents, _ := sheet.GetCellContents(name)
				value, _ := sheet.GetCellValue(name)
				rows = append(rows, cellRow{Name: name, Contents: contents.String(), Value: value.String()})
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if rows == nil {
					rows = []cellRow{}
				}
				return enc.Encode(rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CELL\tCONTENTS\tVALUE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Contents, r.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as a JSON array")
	return cmd
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Load a document and verify its consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := sheetcalc.OpenFile(args[0], c.sheetOptions()...)
			if err != nil {
				return err
			}
			if err := sheet.Verify(); err != nil {
				return fmt.Errorf("%w: %v", errInconsistent, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d cells\n", len(sheet.NonemptyCellNames()))
			return nil
		},
	}
}

func (c *cli) recalcCommand() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "recalc FILE",
		Short: "Recompute every formula and print the evaluation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := sheetcalc.OpenFile(args[0], c.sheetOptions()...)
			if err != nil {
				return err
			}
			for _, name := range sheet.RecalculateAll() {
				value, _ := sheet.GetCellValue(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, value)
			}
			if save {
				return sheet.SaveFile(args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write the document back")
	return cmd
}

func (c *cli) exportCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write a document as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := sheetcalc.OpenFile(args[0], c.sheetOptions()...)
			if err != nil {
				return err
			}
			w, closeOut, err := cliutil.GetOutput(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "json":
				err = sheet.WriteJSON(w)
			case "yaml", "yml":
				err = sheet.WriteYAML(w)
			default:
				err = fmt.Errorf("unknown format %q", format)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
