package export

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// WriteZIP writes one "{table}.csv" entry per table, in the dataset's
// table order, stamped with modified.
func WriteZIP(w io.Writer, ds *models.Dataset, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, t := range ds.Tables() {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     t.Name + ".csv",
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("create %s entry: %w", t.Name, err)
		}
		if err := WriteCSV(entry, t); err != nil {
			return err
		}
	}
	return zw.Close()
}
