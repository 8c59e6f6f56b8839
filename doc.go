// Package fileschema stages flat files in an embedded SQL engine and exposes them
// as relational schemas with typed properties, row counts and sampled records.
//
// A format adapter loads one file into a staged table. Schema discovery loads a
// sample of a directory, reads the column metadata of the staged table and infers
// the property types. The record reader streams the staged rows back as ordered
// key-value records.
//
// # Features
//
//   - Delimited text (CSV, TSV and custom delimiters), fixed-width text, Excel (XLSX),
//     XML (flattened or XSD-driven) and Parquet sources
//   - File-Info and File-Copy adapters that stage one audit row per file
//   - Automatic handling of compressed files (gzip, bzip2, xz, zstandard)
//   - Source text decoding for legacy encodings such as windows-1252
//   - Batched loads committing every 1000 rows
//   - SQLite (default) or DuckDB as the staging engine
//
// # Basic Usage
//
//	store, err := staging.Open(ctx, staging.Config{Location: staging.MemoryLocation})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	layout := model.RootPath{RootPath: "./orders", HasHeader: true}
//	discoverer := fileschema.NewDiscoverer(store, fileschema.NewFactory())
//	schemas, err := discoverer.DiscoverSchemas(ctx, layout, nil, 100)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	it := fileschema.ReadRecords(ctx, store, schemas[0], nil)
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Record().Keys())
//	}
//
// # Sessions
//
// Builder wires the store, the adapter factory and the discoverer together:
//
//	session, err := fileschema.NewBuilder().AddPath("./orders", true).Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	results, err := session.Import(ctx, session.RootPaths()[0])
//	path, rows, err := session.Export(ctx, session.RootPaths()[0], "orders", "./out",
//	    fileschema.NewExportOptions().WithCompression(fileschema.CompressionGZ))
//
// # Table Naming
//
// Table names are derived from the directory holding the files unless the layout
// names the table:
//   - "./orders/2024-01.csv" becomes table "orders"
//   - a root path naming "data.tsv.gz" becomes table "data"
//   - XML schema layouts stage "<table>_<element>" per dataset table
//
// # Load Semantics
//
// Rows are committed every 1000 rows. When a load fails only the open batch is
// rolled back; earlier batches stay staged and the committed count is returned with
// the error. Loading a directory again purges the staged rows first.
package fileschema
