package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	boreal "github.com/rudderlabs/boreal-sql-go"
)

func init() {
	DefaultList = append(DefaultList, Query())
}

func Query() *cli.Command {
	return &cli.Command{
		Name:   "query",
		Usage:  "execute a SQL statement and print its result",
		Action: runQuery,
		Flags: append(connectionFlags(),
			&cli.StringFlag{Name: "sql", Usage: "SQL text to execute"},
			&cli.StringFlag{Name: "file", Usage: "read the SQL text from a file"},
		),
	}
}

func runQuery(c *cli.Context) error {
	sqlStmt := c.String("sql")
	if c.IsSet("file") {
		content, err := os.ReadFile(c.String("file"))
		if err != nil {
			return err
		}
		sqlStmt = string(content)
	}
	if sqlStmt == "" {
		return errors.New("need --sql or --file")
	}

	env, conn, err := dial(c)
	if err != nil {
		return err
	}
	defer env.Term()
	defer conn.Close()

	stmt := conn.NewStatement()
	defer stmt.Close()
	if err := stmt.Query(c.Context, sqlStmt); err != nil {
		return err
	}

	if stmt.IsDML() {
		fmt.Printf("query %s: %d rows affected\n", stmt.QueryID(), stmt.AffectedRows())
		return nil
	}

	columns := stmt.Columns()
	headers := lo.Map(columns, func(col boreal.ColumnDescriptor, _ int) string {
		return col.Name
	})
	cells := make([]string, len(columns))
	for i, col := range columns {
		if err := stmt.BindResult(boreal.BindOutput{
			Index: col.Index,
			Kind:  boreal.KindString,
			Value: &cells[i],
		}); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	var headerColors []tablewriter.Colors
	for range columns {
		headerColors = append(headerColors, tablewriter.Colors{tablewriter.Bold, tablewriter.BgCyanColor})
	}
	table.SetHeaderColor(headerColors...)

	for {
		err := stmt.Fetch()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		row := make([]string, len(cells))
		copy(row, cells)
		table.Append(row)
	}
	table.Render()
	fmt.Printf("%d rows (query %s)\n", stmt.RowCount(), stmt.QueryID())
	return nil
}
