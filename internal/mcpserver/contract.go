package mcpserver

// SnapshotFormatContract describes the per-subject snapshot descriptor
// so LLM consumers can interpret get_snapshot output.
const SnapshotFormatContract = `# Casevault Snapshot Descriptor Format

Each subject directory (` + "`" + `CR_<subject name>` + "`" + `) holds one ` + "`" + `snapshot.json` + "`" + `
mirroring the database record for that subject.

## Structure

` + "```" + `json
{
  "version": "1.0",
  "subject_id": 7,
  "subject_name": "Jane Roe",
  "created_at": "2025-01-15T10:30:00Z",
  "updated_at": "2025-01-20T08:12:44Z",
  "notes": "free-text case notes",
  "files": [
    {
      "file_id": 12,
      "filename": "note.txt",
      "kind": "text",
      "uploaded_at": "2025-01-18T09:00:00Z",
      "annotation": "intake note",
      "status": "completed"
    }
  ]
}
` + "```" + `

## Rules

1. The database is the source of truth; the descriptor is a derived
   mirror and can always be regenerated via ` + "`" + `rebuild_snapshot` + "`" + `.
2. ` + "`" + `files` + "`" + ` preserves the store's insertion order.
3. ` + "`" + `kind` + "`" + ` is one of ` + "`" + `audio` + "`" + `, ` + "`" + `image` + "`" + `, ` + "`" + `text` + "`" + `.
4. ` + "`" + `status` + "`" + ` is one of ` + "`" + `pending` + "`" + `, ` + "`" + `processing` + "`" + `, ` + "`" + `completed` + "`" + `, ` + "`" + `failed` + "`" + `.
5. Timestamps are ISO-8601 (RFC 3339) in UTC.
6. Do not edit the file by hand; out-of-band edits are detected and
   flagged, never merged back into the database.
`
