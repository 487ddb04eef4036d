package mcpserver

// EntityFormatContract describes the canonical entity document format that
// LLM consumers should follow when creating or updating entities.
const EntityFormatContract = `# Lorevault Entity Format Contract

Every entity document stored in Lorevault MUST follow this structure.

## Structure

` + "```" + `markdown
---
id: npc_acolyte-vorra_7c2e          # REQUIRED - canonical id, minted by the server
name: Acolyte Vorra                 # REQUIRED - display name
type: npc                           # REQUIRED - one of the entity types below
tags:                               # OPTIONAL - list of freeform tags
  - tide-court
aliases:                            # OPTIONAL - alternative names for resolution
  - Vorra
allies:                             # OPTIONAL - relationship ledger (type-specific)
  - id: npc_brother-maal_k91x
    notes: fellow acolyte
---

Body text in standard Markdown.
` + "```" + `

## Entity types

` + "`" + `npc` + "`" + `, ` + "`" + `quest` + "`" + `, ` + "`" + `location` + "`" + `, ` + "`" + `faction` + "`" + `, ` + "`" + `monster` + "`" + `, ` + "`" + `encounter` + "`" + `, ` + "`" + `session` + "`" + `.
The set is closed; no other type values are accepted.

## Rules

1. **Front matter is mandatory.** The ` + "```" + `---` + "```" + ` fences delimit it; metadata
   uses two-space indentation, no tabs.
2. **Canonical ids** have the form ` + "`" + `type_slug_shortcode` + "`" + `: a known type, a
   kebab-case slug of at most 24 characters, and a 4-6 character base36
   code. Never invent ids; use the ` + "`" + `create_entity` + "`" + ` tool and let the
   server mint one.
3. **Relationship ledgers** are type-specific list fields (e.g. ` + "`" + `allies` + "`" + `
   for npcs, ` + "`" + `giver` + "`" + ` for quests). Entries may be a bare reference string
   or a mapping with ` + "`" + `id` + "`" + ` and optional ` + "`" + `notes` + "`" + `. On save the server
   resolves every reference to a canonical id and rejects the document if
   any reference cannot be resolved.
4. **References** may use a canonical id, an exact name or alias, or the
   qualified forms ` + "`" + `[type] Name` + "`" + ` and ` + "`" + `type: Name` + "`" + `.
5. **File paths** use forward slashes; the default layout is
   ` + "`" + `<type>/<id>.md` + "`" + `. Structured variants (` + "`" + `.yaml` + "`" + `, ` + "`" + `.json` + "`" + `) are
   also accepted.
6. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
id: quest_sunken-bell_94k2
name: The Sunken Bell
type: quest
giver:
  - id: npc_acolyte-vorra_7c2e
locations:
  - id: location_drowned-chapel_x3f9
    notes: where the bell rests
---

# The Sunken Bell

Recover the bronze bell from the drowned chapel before the spring tide.
` + "```" + `
`
