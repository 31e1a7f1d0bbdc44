package mcpserver

// ReportFormatContract describes the JSON payload produced by the
// compare_robot_models tool, for LLM consumers.
const ReportFormatContract = `# robotdiff Comparison Report Format

The compare_robot_models tool returns a JSON object with this structure.

## Structure

` + "```" + `json
{
  "outcome": "different",
  "report": {
    "name_a": "robot_a",
    "name_b": "robot_b",
    "entries": [
      {
        "entity_kind": "link",
        "entity_id": "arm",
        "field_path": "inertial.mass",
        "value_a": "2.5",
        "value_b": "2.6",
        "classification": "mismatch"
      }
    ],
    "warnings": []
  },
  "file_a": "a.urdf",
  "file_b": "b.mjcf",
  "format_a": "urdf",
  "format_b": "mjcf",
  "checksum_a": "<sha256 hex>",
  "checksum_b": "<sha256 hex>"
}
` + "```" + `

## Fields

- **outcome** is ` + "`" + `equivalent` + "`" + ` when the report has no entries,
  ` + "`" + `different` + "`" + ` otherwise. A comparison that could not run
  returns a tool error instead.
- **entity_kind** is one of ` + "`" + `model` + "`" + `, ` + "`" + `link` + "`" + `, ` + "`" + `joint` + "`" + `.
- **entity_id** names the entity; empty for model-level entries.
- **field_path** is a dotted path into the canonical model, e.g.
  ` + "`" + `inertial.mass` + "`" + `, ` + "`" + `collisions[0].geometry.radius` + "`" + `,
  ` + "`" + `origin.orientation` + "`" + `. Empty for presence entries, ` + "`" + `structure` + "`" + `
  for joints whose endpoints disagree.
- **classification** is one of:
  - ` + "`" + `mismatch` + "`" + ` – the field exists on both sides and differs beyond tolerance.
  - ` + "`" + `added_in_b` + "`" + ` – present only in the second model.
  - ` + "`" + `removed_from_b` + "`" + ` – present only in the first model.
  - ` + "`" + `unmatched_structure` + "`" + ` – a same-named joint connects different links.
- **warnings** lists non-fatal elements each parser skipped, such as
  unsupported geometry primitives.

## Rules

1. An empty ` + "`" + `entries` + "`" + ` array means the models are equivalent
   under the requested tolerance.
2. Entries are ordered: model first, then links, then joints, each
   alphabetically by entity and field path. The order is deterministic
   across runs.
3. Numeric values are rendered with ` + "`" + `%g` + "`" + `; vectors as
   ` + "`" + `(x, y, z)` + "`" + `; orientations as canonical quaternions
   ` + "`" + `(w, x, y, z)` + "`" + `.
4. Visual geometry is only compared when ` + "`" + `include_visual` + "`" + ` is
   set or ` + "`" + `visual` + "`" + ` is in ` + "`" + `fields` + "`" + `.
`
