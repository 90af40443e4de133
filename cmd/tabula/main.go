package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"tabula"
)

var cli struct {
	Config  string `help:"Path to a YAML config file (name, version, durability)." type:"path"`
	Verbose bool   `short:"v" help:"Log database operations to stderr."`

	Tables struct {
		Path string `arg:"" help:"Database file."`
	} `cmd:"" help:"List the tables of a database."`

	Get struct {
		Path  string `arg:"" help:"Database file."`
		Table string `arg:"" help:"Table name."`
		Key   string `arg:"" help:"Key (string tables only)."`
	} `cmd:"" help:"Print a value as JSON."`

	Put struct {
		Path  string `arg:"" help:"Database file."`
		Table string `arg:"" help:"Table name."`
		Key   string `arg:"" help:"Key (string tables only)."`
		Value string `arg:"" help:"Value as JSON."`
	} `cmd:"" help:"Store a JSON value."`

	Repack struct {
		Path string `arg:"" help:"Database file."`
	} `cmd:"" help:"Write a size-compacted copy of a database in place."`
}

type fileConfig struct {
	Name       string `yaml:"name"`
	Version    int    `yaml:"version"`
	Durability string `yaml:"durability"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(raw, &cfg)
	return cfg, err
}

func options(cfg fileConfig, readOnly bool) (tabula.Options, error) {
	o := tabula.Options{
		Name:     cfg.Name,
		Version:  cfg.Version,
		ReadOnly: readOnly,
	}
	switch cfg.Durability {
	case "", "safe":
		o.Durability = tabula.DurabilitySafe
	case "unsafe":
		o.Durability = tabula.DurabilityUnsafe
	default:
		return o, fmt.Errorf("unknown durability %q (want safe or unsafe)", cfg.Durability)
	}
	if cli.Verbose {
		o.Logf = log.Printf
	}
	return o, nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("tabula"),
		kong.Description("Inspect and maintain tabula database files."))

	cfg, err := loadConfig(cli.Config)
	ctx.FatalIfErrorf(err)

	switch ctx.Command() {
	case "tables <path>":
		err = runTables(cfg)
	case "get <path> <table> <key>":
		err = runGet(cfg)
	case "put <path> <table> <key> <value>":
		err = runPut(cfg)
	case "repack <path>":
		err = runRepack(cfg)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	ctx.FatalIfErrorf(err)
}

func runTables(cfg fileConfig) error {
	o, err := options(cfg, true)
	if err != nil {
		return err
	}
	db, err := tabula.Open(cli.Tables.Path, o)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, name := range db.TableNames() {
		m := db.Table(name).Meta()
		fmt.Printf("%s\tkey=%s value=%s compression=%s\n", name, orNone(m.KeyCodec), orNone(m.ValueCodec), orNone(m.Compression))
	}
	return nil
}

func orNone(tag string) string {
	if tag == "" {
		return "-"
	}
	return tag
}

func runGet(cfg fileConfig) error {
	o, err := options(cfg, true)
	if err != nil {
		return err
	}
	db, err := tabula.Open(cli.Get.Path, o)
	if err != nil {
		return err
	}
	defer db.Close()
	tbl := db.Table(cli.Get.Table)
	if tbl == nil {
		return fmt.Errorf("table %q not found", cli.Get.Table)
	}
	v, err := tbl.Get(cli.Get.Key)
	if err != nil {
		return err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPut(cfg fileConfig) error {
	o, err := options(cfg, false)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal([]byte(cli.Put.Value), &v); err != nil {
		return fmt.Errorf("value is not valid JSON: %w", err)
	}
	db, err := tabula.Open(cli.Put.Path, o)
	if err != nil {
		return err
	}
	defer db.Close()
	tbl := db.Table(cli.Put.Table)
	if tbl == nil {
		return fmt.Errorf("table %q not found", cli.Put.Table)
	}
	return tbl.Put(cli.Put.Key, v)
}

func runRepack(cfg fileConfig) error {
	o, err := options(cfg, true)
	if err != nil {
		return err
	}
	// Open first so a non-tabula file is rejected before rewriting it.
	db, err := tabula.Open(cli.Repack.Path, o)
	if err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	return db.Repack()
}
