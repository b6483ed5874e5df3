package schema

// CurrentVersion is the schema version this build of the setup tool
// targets. Migration steps registered in internal/migrate must bridge every
// transition from 0 up to this value.
const CurrentVersion = 2

// VersionTableName is the single-row metadata table holding the persisted
// schema version. Its absence means version 0.
const VersionTableName = "schema_version"

// Upload status and share mode literals used by the current schema.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"

	SharePrivate = "private"
	SharePublic  = "public"
	ShareGroup   = "group"
	ShareCasual  = "casual"
)

// VersionTable returns the definition of the schema_version metadata table.
// The id column pins the single-row invariant: the version is always
// upserted with id 1.
func VersionTable() Table {
	return NewTable(VersionTableName,
		Int("id").WithPrimaryKey(),
		Int("version").WithNotNull(),
	)
}

// TablesAt returns the declared table definitions for a historical schema
// version. Version 0 is the legacy layout where the client-supplied session
// string is the user identity; version 1 introduces surrogate integer user
// ids with a session mapping table; version 2 is the current layout.
// Callers get fresh copies; definitions are never shared mutable state.
func TablesAt(version int) []Table {
	switch version {
	case 0:
		return []Table{
			NewTable("users",
				VarChar("session", 32).WithPrimaryKey(),
				VarChar("name", 80).WithNotNull(),
				VarChar("email", 120),
				VarChar("password", 255),
				DateTimeCol("created"),
			),
			NewTable("uploads",
				Int("id").WithPrimaryKey().WithAutoIncrement(),
				VarChar("session", 32).WithNotNull(),
				VarChar("filename", 255).WithNotNull(),
				Int("filesize"),
				VarChar("content_type", 64),
				DateTimeCol("uploaded"),
				EnumCol("status", StatusPending, StatusProcessed, StatusFailed).WithNotNull(),
			),
		}
	case 1:
		return []Table{
			NewTable("users",
				Int("id").WithPrimaryKey().WithAutoIncrement(),
				VarChar("name", 80).WithNotNull(),
				VarChar("email", 120),
				VarChar("password", 255),
				DateTimeCol("created"),
			),
			NewTable("sessions",
				VarChar("session_key", 64).WithPrimaryKey(),
				Int("user_id").WithNotNull(),
				DateTimeCol("created"),
				TimestampCol("last_seen"),
			),
			NewTable("uploads",
				Int("id").WithPrimaryKey().WithAutoIncrement(),
				Int("user_id").WithNotNull(),
				VarChar("filename", 255).WithNotNull(),
				Int("filesize"),
				VarChar("content_type", 64),
				DateTimeCol("uploaded"),
				EnumCol("status", StatusPending, StatusProcessed, StatusFailed).WithNotNull(),
			),
		}
	case 2:
		return []Table{
			NewTable("users",
				Int("id").WithPrimaryKey().WithAutoIncrement(),
				VarChar("name", 80).WithNotNull(),
				VarChar("email", 120),
				VarChar("password", 255),
				DateTimeCol("created"),
			),
			NewTable("sessions",
				VarChar("session_key", 64).WithPrimaryKey(),
				Int("user_id").WithNotNull(),
				DateTimeCol("created"),
				TimestampCol("last_seen"),
				DateTimeCol("expires"),
			),
			NewTable("uploads",
				Int("id").WithPrimaryKey().WithAutoIncrement(),
				Int("user_id").WithNotNull(),
				VarChar("filename", 255).WithNotNull(),
				Int("filesize"),
				VarChar("content_type", 64),
				DateTimeCol("uploaded"),
				EnumCol("status", StatusPending, StatusProcessed, StatusFailed).WithNotNull(),
				EnumCol("share_mode", SharePrivate, SharePublic, ShareGroup, ShareCasual).
					WithNotNull().WithDefault(SharePrivate),
			),
		}
	default:
		return nil
	}
}

// CurrentTables returns the table definitions for CurrentVersion.
func CurrentTables() []Table {
	return TablesAt(CurrentVersion)
}

// TableAt returns one named table definition at a historical version.
func TableAt(version int, name string) (Table, bool) {
	for _, t := range TablesAt(version) {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
