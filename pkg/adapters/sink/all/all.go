// Package all registers every sink.
package all

import (
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/mssql"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/mysql"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/postgres"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/sqlite"
)
