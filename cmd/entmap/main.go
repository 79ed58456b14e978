// entmap 检查 schema 和字典文档
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hatlonely/entmap/dictionary"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/schema"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli 命令之间共享的状态，在 PersistentPreRunE 中加载
type cli struct {
	schemaDir     string
	dictionaryDir string
	logLevel      string

	log      logger.Logger
	catalog  *dictionary.Catalog
	registry *schema.Registry
}

func newRootCommand(stdout io.Writer, stderr io.Writer) *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "entmap",
		Short: "Inspect entity schema and dictionary documents",
		Long: `entmap loads the schema documents (json/yaml/toml) under --schema-dir and the
dictionaries under --dictionary-dir, the same way the data access layer does at
startup, and reports structural errors.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.schemaDir, "schema-dir", "schema", "directory of schema documents")
	root.PersistentFlags().StringVar(&c.dictionaryDir, "dictionary-dir", "", "directory of dictionary documents")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(c.schemaCommand(), c.dictionaryCommand())
	return root
}

func (c *cli) load(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "help", "completion":
		return nil
	}

	l, err := logger.NewSLogWithWriter(cmd.ErrOrStderr(), &logger.SLogOptions{Level: c.logLevel, Format: "text"})
	if err != nil {
		return errors.WithMessage(err, "create logger failed")
	}
	c.log = l

	if c.dictionaryDir == "" {
		c.catalog, _ = dictionary.NewCatalog()
	} else if c.catalog, err = dictionary.LoadDir(c.dictionaryDir); err != nil {
		return err
	}
	c.log.Debug("dictionaries loaded", "dir", c.dictionaryDir, "dictionaries", c.catalog.Names())

	// 字典命令不需要 schema
	if cmd.Parent() != nil && cmd.Parent().Name() == "dictionary" {
		return nil
	}

	c.registry = schema.NewRegistry()
	factory := schema.NewFieldTypeFactory(c.registry, schema.WithDictionary(c.catalog))
	dds, err := schema.NewLoader(factory).LoadDir(context.Background(), c.schemaDir)
	if err != nil {
		return err
	}
	c.registry.Seal()
	c.log.Debug("schema loaded", "dir", c.schemaDir, "definitions", len(dds))
	return nil
}
