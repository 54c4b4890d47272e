package main

import (
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// Empty prefix dumps everything, "msg:<room_id>:" narrows to one room.
	prefix := flag.String("prefix", "", "Prefix to scan")
	indexes := flag.Bool("indexes", false, "Show secondary index keys")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = repositories.Scan(db, *prefix, func(r repositories.Record) error {
		if r.Kind == "INDEX" && !*indexes {
			return nil
		}
		timestamp := ""
		if !r.At.IsZero() {
			timestamp = r.At.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{r.Key, r.Kind, timestamp, truncate(r.Detail, 80)})
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		fmt.Println("Database needs recovery, reopening in write mode")
		return badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
	}
	return db, err
}
