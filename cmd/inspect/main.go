// Command inspect dumps the persisted conversations of a relay database as a
// table. It opens BadgerDB read-only so it can run next to a live relay.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
	"chat-relay/repositories"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	var messages []domain.Message
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				message, err := repositories.DecodeRecord(v)
				if err != nil {
					// Log and keep scanning instead of aborting the dump.
					fmt.Printf("Error decoding key %s: %v\n", string(item.Key()), err)
					return nil
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Conversation", "Timestamp", "Sender", "Content", "Lang", "Reply To"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for conversation, grouped := range repositories.ToRecordsByConversation(messages) {
		label := strings.TrimSuffix(strings.TrimPrefix(conversation, "msg:"), ":")
		for _, message := range grouped {
			replyTo := ""
			if message.ReplyTo != nil {
				replyTo = *message.ReplyTo
			}
			table.Append([]string{
				label,
				message.CreatedAt.Format("2006-01-02 15:04:05"),
				message.Sender,
				message.Content,
				message.Lang,
				replyTo,
			})
		}
	}
	table.Render()
	fmt.Printf("\n%d messages\n", len(messages))
}
