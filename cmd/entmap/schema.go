package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hatlonely/entmap/cfg/decoder"
	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/hatlonely/entmap/schema"
)

func (c *cli) schemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect data definitions",
	}

	var format string
	show := &cobra.Command{
		Use:   "show <plugin>.<name>",
		Short: "Print a data definition",
		Long: `Print a data definition in the same document form it is loaded from.

Example:
  entmap schema show sales.order
  entmap schema show sales.order --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.show(cmd, args[0], format)
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json, toml")

	var classes bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check that every reference points to a loaded definition",
		Long: `Check that every reference points to a loaded definition, every hasMany
join field exists and every dictionary field names a loaded dictionary. With --classes the concrete Go types must also be linked
into the binary and expose a property for every field.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verifyFn := c.registry.VerifyReferences
			if classes {
				verifyFn = c.registry.Verify
			}
			if err := verifyFn(); err != nil {
				return err
			}
			if err := c.verifyDictionaries(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d definitions\n", len(c.registry.List()))
			return nil
		},
	}
	verify.Flags().BoolVar(&classes, "classes", false, "also resolve the concrete types")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List data definitions",
		Args:  cobra.NoArgs,
		RunE:  c.list,
	}, show, verify)
	return cmd
}

func (c *cli) verifyDictionaries() error {
	for _, dd := range c.registry.List() {
		for _, fd := range dd.Fields() {
			name := schema.DictionaryName(fd.Type())
			if name == "" {
				continue
			}
			if _, err := c.catalog.Get(name); err != nil {
				return errors.WithMessagef(err, "%s: field %q", dd.FullName(), fd.Name())
			}
		}
	}
	return nil
}

func (c *cli) list(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTABLE\tFIELDS\tTYPE")
	for _, dd := range c.registry.List() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", dd.FullName(), dd.TableName(), len(dd.Fields()), dd.TypeName())
	}
	return w.Flush()
}

func (c *cli) show(cmd *cobra.Command, fullName string, format string) error {
	plugin, name, ok := strings.Cut(fullName, ".")
	if !ok {
		return errors.Errorf("definition name %q should be <plugin>.<name>", fullName)
	}
	dd, err := c.registry.Get(plugin, name)
	if err != nil {
		return err
	}
	dec, err := decoder.NewDecoderByExtension("definition." + format)
	if err != nil {
		return errors.WithMessagef(err, "unsupported format %q", format)
	}
	buf, err := dec.Encode(storage.NewMapStorage(describe(dd)))
	if err != nil {
		return errors.WithMessage(err, "encode failed")
	}
	_, err = cmd.OutOrStdout().Write(buf)
	return err
}

// describe 和 schema.DefinitionOptions 的文档格式一致，只输出非零值
func describe(dd *schema.DataDefinition) map[string]any {
	fields := make([]any, 0, len(dd.Fields()))
	for _, fd := range dd.Fields() {
		field := map[string]any{
			"name": fd.Name(),
			"type": string(fd.Type().Kind()),
		}
		if fd.Required() {
			field["required"] = true
		}
		if fd.Unique() {
			field["unique"] = true
		}
		if fd.ReadOnly() {
			field["readOnly"] = true
		}
		if fd.Default() != nil {
			field["default"] = fd.Default()
		}
		if fd.Validation() != "" {
			field["validation"] = fd.Validation()
		}
		if values := schema.EnumValues(fd.Type()); values != nil {
			items := make([]any, 0, len(values))
			for _, v := range values {
				items = append(items, v)
			}
			field["values"] = items
		}
		if name := schema.DictionaryName(fd.Type()); name != "" {
			field["dictionary"] = name
		}
		switch t := fd.Type().(type) {
		case *schema.BelongsToType:
			field["plugin"] = t.Plugin()
			field["entity"] = t.Entity()
			if t.Lazy() {
				field["lazy"] = true
			}
		case *schema.HasManyType:
			field["plugin"] = t.Plugin()
			field["entity"] = t.Entity()
			field["joinField"] = t.JoinField()
		}
		fields = append(fields, field)
	}

	return map[string]any{
		"plugin":     dd.PluginIdentifier(),
		"name":       dd.Name(),
		"type":       dd.TypeName(),
		"identifier": dd.IdentifierField(),
		"table":      dd.TableName(),
		"deleted":    dd.DeletedField(),
		"fields":     fields,
	}
}
