package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/jdholdren/juicer/internal/juicer"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func write(w io.Writer, format string, headlines []juicer.Headline) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(headlines)
	}

	if len(headlines) == 0 {
		_, err := fmt.Fprintln(w, "no headlines stored")
		return err
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)

	rows := make([][]string, len(headlines))
	for i, h := range headlines {
		rows[i] = []string{h.ID, h.DisplayTime, h.Timestamp.Local().Format(time.DateTime), h.Title}
	}

	table.Header([]string{"id", "time", "seen", "title"})
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("error building table: %w", err)
	}

	return table.Render()
}
