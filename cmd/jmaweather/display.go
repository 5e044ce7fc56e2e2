package main

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/lox/jmaweather/internal/models"
	"github.com/lox/jmaweather/internal/store"
)

func formatTemp(t sql.NullFloat64) string {
	if !t.Valid {
		return models.NotAvailable
	}
	return strconv.FormatFloat(t.Float64, 'f', -1, 64) + "℃"
}

func printAreas(w io.Writer, areas []models.AreaRef) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME")
	for _, a := range areas {
		fmt.Fprintf(tw, "%s\t%s\n", a.Code, a.Name)
	}
	tw.Flush()
}

// printRecords renders one card per forecast day.
func printRecords(w io.Writer, areaCode string, records []models.ForecastRecord) {
	fmt.Fprintf(w, "== %s ==\n", areaCode)
	for _, r := range records {
		fmt.Fprintf(w, "%s  %s\n", r.Date, r.Weather)
		fmt.Fprintf(w, "  最高気温: %s\n", formatTemp(r.TempMax))
		fmt.Fprintf(w, "  最低気温: %s\n", formatTemp(r.TempMin))
	}
	fmt.Fprintln(w)
}

func printStored(w io.Writer, stored []models.StoredForecast) {
	if len(stored) == 0 {
		fmt.Fprintln(w, "no forecasts stored for that date")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAREA\tDATE\tWEATHER\tMAX\tMIN")
	for _, f := range stored {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.AreaCode, f.Date, f.Weather, formatTemp(f.TempMax), formatTemp(f.TempMin))
	}
	tw.Flush()
}

func printRuns(w io.Writer, runs []store.IngestRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tAREA\tSTATUS\tSTORED\tRESULT")
	for _, r := range runs {
		status := "-"
		if r.HTTPStatus.Valid {
			status = strconv.FormatInt(r.HTTPStatus.Int64, 10)
		}
		stored := "-"
		if r.RecordsStored.Valid {
			stored = strconv.FormatInt(r.RecordsStored.Int64, 10)
		}
		result := "ok"
		if !r.Success {
			result = "failed: " + r.ErrorMessage.String
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Source, r.AreaCode, status, stored, result)
	}
	tw.Flush()
}
