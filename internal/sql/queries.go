package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/lookup_records.sql
var LookupRecords string

//go:embed queries/update_records.sql
var UpdateRecords string

//go:embed queries/register_document.sql
var RegisterDocument string

//go:embed queries/finish_document.sql
var FinishDocument string

//go:embed queries/last_loaded_digest.sql
var LastLoadedDigest string
