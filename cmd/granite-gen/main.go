// Package main implements granite-gen, a fixture tool that builds parts from
// JSON row data and registers them in a table catalog. Optionally the parts
// are uploaded to object storage and registered by object path instead of
// local directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/granitedb/granite/internal/catalog"
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/internal/storage"
	"github.com/granitedb/granite/internal/table"
	"github.com/granitedb/granite/pkg/types"
)

// genSpec is the JSON input format.
type genSpec struct {
	Table       string    `json:"table"`
	Schema      []specCol `json:"schema"`
	PrimaryKey  []string  `json:"primary_key"`
	Layout      string    `json:"layout"`
	GranuleSize int       `json:"granule_size"`
	Parts       []genPart `json:"parts"`
}

type specCol struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type genPart struct {
	Name string                   `json:"name"`
	Rows []map[string]interface{} `json:"rows"`
}

func main() {
	var (
		specFile    string
		dataDir     string
		storageType string
		storagePath string
		s3Bucket    string
		s3Region    string
		s3Endpoint  string
	)

	flag.StringVar(&specFile, "spec", "", "Path to the JSON generation spec (required)")
	flag.StringVar(&dataDir, "data-dir", "./data/granite", "Table directory to write the catalog and parts into")
	flag.StringVar(&storageType, "storage", "", "Upload parts to object storage: local, s3 (default: keep parts local)")
	flag.StringVar(&storagePath, "storage-path", "", "Local object storage path (for -storage local)")
	flag.StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket (for -storage s3)")
	flag.StringVar(&s3Region, "s3-region", "", "AWS region")
	flag.StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint for S3-compatible storage")
	flag.Parse()

	if specFile == "" {
		fmt.Fprintln(os.Stderr, "granite-gen: --spec is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(specFile, dataDir, storageType, storagePath, s3Bucket, s3Region, s3Endpoint); err != nil {
		fmt.Fprintf(os.Stderr, "granite-gen: %v\n", err)
		os.Exit(1)
	}
}

func run(specFile, dataDir, storageType, storagePath, s3Bucket, s3Region, s3Endpoint string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(specFile)
	if err != nil {
		return err
	}
	var spec genSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("bad spec: %w", err)
	}
	if spec.Table == "" || len(spec.Schema) == 0 {
		return fmt.Errorf("spec needs table and schema")
	}
	if spec.Layout == "" {
		spec.Layout = string(part.LayoutWide)
	}
	layout, err := part.ParseLayout(spec.Layout)
	if err != nil {
		return err
	}

	schema := make(types.Schema, 0, len(spec.Schema))
	for _, c := range spec.Schema {
		typ, err := parseType(c.Type)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
		schema = append(schema, types.ColumnDef{Name: c.Name, Type: typ})
	}

	var store storage.ObjectStorage
	switch storageType {
	case "":
	case "local":
		if storagePath == "" {
			return fmt.Errorf("-storage-path is required with -storage local")
		}
		store, err = storage.NewLocalStorage(storagePath)
	case "s3":
		if s3Bucket == "" {
			return fmt.Errorf("-s3-bucket is required with -storage s3")
		}
		cfg := storage.DefaultS3Config()
		if s3Region != "" {
			cfg.Region = s3Region
		}
		if s3Endpoint != "" {
			cfg.Endpoint = s3Endpoint
			cfg.UsePathStyle = true
		}
		store, err = storage.NewS3Storage(ctx, s3Bucket, cfg)
	default:
		return fmt.Errorf("unknown storage type %q", storageType)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	cat, err := catalog.Open(filepath.Join(dataDir, table.CatalogFileName))
	if err != nil {
		return err
	}
	defer cat.Close()

	if err := cat.CreateTable(ctx, &catalog.TableRecord{
		Name:       spec.Table,
		Engine:     catalog.EngineMergeTree,
		Schema:     schema,
		PrimaryKey: spec.PrimaryKey,
		CreatedAt:  time.Now(),
	}); err != nil {
		return err
	}

	for _, p := range spec.Parts {
		if err := buildPart(ctx, cat, store, dataDir, &spec, schema, layout, p); err != nil {
			return fmt.Errorf("part %s: %w", p.Name, err)
		}
		fmt.Printf("wrote part %s (%d rows)\n", p.Name, len(p.Rows))
	}
	return nil
}

func buildPart(ctx context.Context, cat *catalog.Catalog, store storage.ObjectStorage,
	dataDir string, spec *genSpec, schema types.Schema, layout part.Layout, p genPart) error {
	data, err := columnize(schema, p.Rows)
	if err != nil {
		return err
	}

	dir := filepath.Join(dataDir, p.Name)
	err = part.Write(dir, p.Name, schema, spec.PrimaryKey, data, part.WriterOptions{
		Layout:      layout,
		GranuleSize: spec.GranuleSize,
	})
	if err != nil {
		return err
	}

	rec := &catalog.PartRecord{
		PartName:  p.Name,
		TableName: spec.Table,
		Layout:    string(layout),
		RowCount:  int64(len(p.Rows)),
		SizeBytes: dirSize(dir),
		CreatedAt: time.Now(),
	}

	if store != nil {
		prefix := path.Join("parts", spec.Table, p.Name)
		if err := storage.UploadDir(ctx, store, dir, prefix); err != nil {
			return err
		}
		// The server fetches uploaded parts through its cache; the local
		// build directory is only scaffolding.
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		rec.ObjectPath = prefix
	}

	return cat.RegisterPart(ctx, rec)
}

// columnize transposes row-oriented JSON into typed column slices.
func columnize(schema types.Schema, rows []map[string]interface{}) (map[string][]interface{}, error) {
	data := make(map[string][]interface{}, schema.Len())
	for _, col := range schema {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			v, ok := row[col.Name]
			if !ok {
				v = col.Type.Default()
			}
			cv, err := convert(col.Type, v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col.Name, err)
			}
			values[i] = cv
		}
		data[col.Name] = values
	}
	return data, nil
}

// convert coerces a decoded JSON value (string or float64) to the column's
// native representation.
func convert(typ types.Type, v interface{}) (interface{}, error) {
	switch typ.Kind {
	case types.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case types.KindInt64:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return int64(f), nil
	case types.KindUInt64:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		if f < 0 {
			return nil, fmt.Errorf("negative value %v for unsigned column", f)
		}
		return uint64(f), nil
	case types.KindFloat64:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", typ)
	}
}

func parseType(s string) (types.Type, error) {
	switch s {
	case "String":
		return types.String(), nil
	case "Int64":
		return types.Int64(), nil
	case "UInt64":
		return types.UInt64(), nil
	case "Float64":
		return types.Float64(), nil
	default:
		return types.Type{}, fmt.Errorf("unknown type %q", s)
	}
}

func dirSize(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
