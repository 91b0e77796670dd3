package adminapi

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

const exportSheetName = "Jobs"

var jobExportHeader = []string{"ID", "Title", "Category", "Location", "Status", "Requester", "Credits", "Created"}

func jobExportRow(job Job) []string {
	created := ""
	if !job.CreatedAt.IsZero() {
		created = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		job.ID.String(),
		job.Title,
		job.Category,
		job.Location,
		job.Status,
		job.RequesterName,
		strconv.FormatFloat(job.Credits, 'f', -1, 64),
		created,
	}
}

// ExportJobsCSV writes a header row followed by one row per job.
func ExportJobsCSV(writer io.Writer, jobs []Job) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(jobExportHeader); err != nil {
		return fmt.Errorf("adminapi.export.csv: %w", err)
	}
	for _, job := range jobs {
		if err := csvWriter.Write(jobExportRow(job)); err != nil {
			return fmt.Errorf("adminapi.export.csv: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("adminapi.export.csv: %w", err)
	}
	return nil
}

// ExportJobsXLSX writes a single-sheet workbook with the same columns as the CSV export.
func ExportJobsXLSX(writer io.Writer, jobs []Job) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	if err := workbook.SetSheetName("Sheet1", exportSheetName); err != nil {
		return fmt.Errorf("adminapi.export.xlsx: %w", err)
	}
	if err := workbook.SetSheetRow(exportSheetName, "A1", &jobExportHeader); err != nil {
		return fmt.Errorf("adminapi.export.xlsx: %w", err)
	}
	for index, job := range jobs {
		cell, cellErr := excelize.CoordinatesToCellName(1, index+2)
		if cellErr != nil {
			return fmt.Errorf("adminapi.export.xlsx: %w", cellErr)
		}
		row := jobExportRow(job)
		values := make([]interface{}, len(row))
		for column, value := range row {
			values[column] = value
		}
		values[6] = job.Credits
		if err := workbook.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return fmt.Errorf("adminapi.export.xlsx: %w", err)
		}
	}
	if err := workbook.Write(writer); err != nil {
		return fmt.Errorf("adminapi.export.xlsx: %w", err)
	}
	return nil
}

// ExportJobs dispatches on format; an unknown format is ErrInvalidArgument.
func ExportJobs(writer io.Writer, format string, jobs []Job) error {
	switch format {
	case "", ExportFormatCSV:
		return ExportJobsCSV(writer, jobs)
	case ExportFormatXLSX:
		return ExportJobsXLSX(writer, jobs)
	default:
		return fmt.Errorf("adminapi.export: %w: format %q", ErrInvalidArgument, format)
	}
}

// ExportContentType returns the MIME type and file extension for format.
func ExportContentType(format string) (string, string) {
	if format == ExportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ExportFormatXLSX
	}
	return "text/csv; charset=utf-8", ExportFormatCSV
}
