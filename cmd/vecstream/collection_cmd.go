package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/torinriley/vecstream"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

func init() {
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)
	collectionCmd.AddCommand(collectionRenameCmd)
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		db, err := openDB()
		if err != nil {
			return err
		}
		if _, err := db.CreateCollection(name); err != nil {
			if errors.Is(err, vecstream.ErrCollectionExists) || errors.Is(err, vecstream.ErrInvalidName) {
				return userErrf("cannot create %q: %w", name, err)
			}
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"name": name, "created": true})
		}
		fmt.Printf("created %q\n", name)
		return nil
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		names := db.ListCollections()

		if flagJSON {
			return printJSON(names)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var collectionRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldName, newName := args[0], args[1]
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := db.RenameCollection(oldName, newName); err != nil {
			if errors.Is(err, vecstream.ErrNoSuchCollection) ||
				errors.Is(err, vecstream.ErrCollectionExists) ||
				errors.Is(err, vecstream.ErrInvalidName) {
				return userErrf("cannot rename %q to %q: %w", oldName, newName, err)
			}
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"old": oldName, "new": newName, "renamed": true})
		}
		fmt.Printf("renamed %q to %q\n", oldName, newName)
		return nil
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := db.DeleteCollection(name); err != nil {
			return wrapNotFound(err, name)
		}

		if flagJSON {
			return printJSON(map[string]any{"name": name, "deleted": true})
		}
		fmt.Printf("deleted %q\n", name)
		return nil
	},
}
