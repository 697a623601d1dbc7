// Package all registers every storage backend with the storage factory.
package all

import (
	// SQL Server driver for database/sql ("sqlserver").
	_ "github.com/microsoft/go-mssqldb"

	_ "fuzzyclean/internal/storage/mssql"
	_ "fuzzyclean/internal/storage/postgres"
	_ "fuzzyclean/internal/storage/sqlite"
)
