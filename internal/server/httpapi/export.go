package httpapi

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// writeProjectCSV writes the project row, a blank line and then one row per
// file.
func writeProjectCSV(w io.Writer, p *models.Project) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Project ID", "Title", "Description", "Technologies", "Project Created At"},
		{strconv.FormatInt(p.ID, 10), p.Title, p.Description, p.Technologies, p.CreatedAt.Format(csvTimeLayout)},
		{},
		{"File Name", "File Path", "File Created At"},
	}
	for _, f := range p.Files {
		rows = append(rows, []string{f.OriginalName, f.FilePath, f.CreatedAt.Format(csvTimeLayout)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func exportFilename(projectID int64) string {
	return "project_" + strconv.FormatInt(projectID, 10) + "_export.csv"
}
