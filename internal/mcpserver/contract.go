package mcpserver

// ImportFormatContract describes the canonical file formats accepted by the
// importer. LLM consumers should follow it when preparing files for
// import_snapshot.
const ImportFormatContract = `# Trove Import Format Contract

The importer accepts two file formats: an items CSV and a full JSON snapshot.

## Items CSV

` + "```" + `csv
name,category,quantity,unit,purchase_date,supplier,photo_path
Oak dowel,Wood,12,pcs,2025-03-01,Hardwood Co,
Linen thread,Thread,3.5,spools,,Stitch Supply,
` + "```" + `

## Rules

1. **The header row is required** and is row 1; data rows are numbered from 2
   in error messages.
2. **Only ` + "`" + `name` + "`" + ` is required.** A row with a blank name is skipped and reported.
3. **Column order does not matter**; unknown columns are ignored.
4. **` + "`" + `quantity` + "`" + ` is a decimal number** (e.g. ` + "`" + `3.5` + "`" + `). An unparsable value is
   reported and the field is left unset.
5. **` + "`" + `supplier` + "`" + ` is a supplier name**, not an id. Unknown supplier names leave
   the item without a supplier.
6. **Encoding** is UTF-8.

## JSON Snapshot

A snapshot is the full-inventory document produced by export_backup:

` + "```" + `json
{
  "export_date": "2025-03-01T12:00:00Z",
  "version": "1.0",
  "data": {
    "suppliers": [...],
    "items": [...],
    "projects": [...],
    "tags": [...],
    "project_materials": {"<project_id>": [...]},
    "item_tags": {"<item_id>": [<tag_id>, ...]},
    "project_tags": {"<project_id>": [<tag_id>, ...]},
    "item_metadata": {"<item_id>": {"key": "value"}}
  }
}
` + "```" + `

Ids inside a snapshot are those of the exporting database. The importer remaps
them to fresh ids on insert and rewrites every cross-reference, so snapshots
can be imported into any database.

## Conflict policy

Both formats take a policy that decides what happens when an incoming record
has the same name as an existing one:

- ` + "`" + `skip` + "`" + ` (default): keep the existing record untouched.
- ` + "`" + `update` + "`" + `: overwrite the existing record's fields with incoming values.
- ` + "`" + `rename` + "`" + `: insert the incoming record under ` + "`" + `name (1)` + "`" + `, ` + "`" + `name (2)` + "`" + `, ...
  using the smallest free suffix.
`
