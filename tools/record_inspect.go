// record_inspect dumps the chat records held in a BadgerDB store as a
// table, for debugging a local database offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

type storedRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	OwnerID   string         `json:"owner_id"`
	Data      map[string]any `json:"data"`
	Revision  uint64         `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "rec:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Record ID", "Owner", "Rev", "Created", "Data"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Skip the message time index; it only points back at records.
			if strings.HasPrefix(string(item.Key()), "msg:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var record storedRecord
				if err := json.Unmarshal(v, &record); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				displayID := record.ID
				if len(displayID) > 8 {
					displayID = displayID[:8]
				}
				data, _ := json.Marshal(record.Data)

				table.Append([]string{
					string(item.Key()),
					record.Type,
					displayID,
					record.OwnerID,
					fmt.Sprintf("%d", record.Revision),
					record.CreatedAt.Format("15:04:05"),
					string(data),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
