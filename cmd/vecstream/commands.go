package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/torinriley/vecstream"
	"github.com/torinriley/vecstream/collection"
	"github.com/torinriley/vecstream/metadata"
)

func getOrCreateCollection(db *vecstream.DB, name string) (*collection.Collection, error) {
	c, err := db.GetCollection(name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, vecstream.ErrNoSuchCollection) {
		return nil, err
	}
	return db.CreateCollection(name)
}

var flagModel string

var addCmd = &cobra.Command{
	Use:   "add <text> <id>",
	Short: "Embed text and add it to a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, id := args[0], args[1]
		if flagModel != "" && flagModel != "hash" {
			return userErrf("unsupported --model %q (only \"hash\" is available)", flagModel)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		c, err := getOrCreateCollection(db, flagCollection)
		if err != nil {
			return err
		}

		vec := embedText(text)
		if err := c.AddVector(id, vec, nil); err != nil {
			if errors.Is(err, vecstream.ErrDuplicateID) {
				return userErrf("id %q already exists: %w", id, err)
			}
			return err
		}
		if err := c.Save(); err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"id": id, "collection": flagCollection})
		}
		fmt.Printf("added %q to %q\n", id, flagCollection)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&flagModel, "model", "hash", "embedding model to use")
}

var (
	flagK         int
	flagThreshold string
	flagFilter    string
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search a collection for similar text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[0]

		var filter metadata.Filter
		if flagFilter != "" {
			if err := json.Unmarshal([]byte(flagFilter), &filter); err != nil {
				return userErrf("invalid --filter JSON: %w", err)
			}
		}

		var threshold *float32
		if flagThreshold != "" {
			t, err := strconv.ParseFloat(flagThreshold, 32)
			if err != nil {
				return userErrf("invalid --threshold: %w", err)
			}
			t32 := float32(t)
			threshold = &t32
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		c, err := db.GetCollection(flagCollection)
		if err != nil {
			if errors.Is(err, vecstream.ErrNoSuchCollection) {
				return userErrf("collection %q not found: %w", flagCollection, err)
			}
			return err
		}

		vec := embedText(text)
		results, err := c.SearchSimilar(vec, flagK, 0, filter, threshold)
		if err != nil {
			return err
		}

		if flagJSON {
			out := make([]map[string]any, len(results))
			for i, r := range results {
				entry := map[string]any{"id": r.ID, "similarity": r.Similarity}
				if _, meta, err := c.GetVectorWithMetadata(r.ID); err == nil && meta != nil {
					entry["metadata"] = meta
				}
				out[i] = entry
			}
			return printJSON(out)
		}
		for _, r := range results {
			fmt.Printf("%s\t%.4f\n", r.ID, r.Similarity)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", 10, "number of results")
	searchCmd.Flags().StringVar(&flagThreshold, "threshold", "", "minimum similarity")
	searchCmd.Flags().StringVar(&flagFilter, "filter", "", "JSON metadata filter")
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a vector and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		db, err := openDB()
		if err != nil {
			return err
		}
		c, err := db.GetCollection(flagCollection)
		if err != nil {
			return wrapNotFound(err, flagCollection)
		}

		vec, meta, err := c.GetVectorWithMetadata(id)
		if err != nil {
			if errors.Is(err, vecstream.ErrNotFound) {
				return userErrf("id %q not found: %w", id, err)
			}
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"id": id, "vector": vec, "metadata": meta})
		}
		fmt.Printf("id: %s\nvector: %v\nmetadata: %v\n", id, vec, meta)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a vector from a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		db, err := openDB()
		if err != nil {
			return err
		}
		c, err := db.GetCollection(flagCollection)
		if err != nil {
			return wrapNotFound(err, flagCollection)
		}

		if err := c.RemoveVector(id); err != nil {
			if errors.Is(err, vecstream.ErrNotFound) {
				return userErrf("id %q not found: %w", id, err)
			}
			return err
		}
		if err := c.Save(); err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"id": id, "removed": true})
		}
		fmt.Printf("removed %q\n", id)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		c, err := db.GetCollection(flagCollection)
		if err != nil {
			return wrapNotFound(err, flagCollection)
		}

		stats := c.Stats()
		if flagJSON {
			return printJSON(stats)
		}
		fmt.Printf("collection: %s\n", flagCollection)
		fmt.Printf("size: %d\n", stats.Size)
		fmt.Printf("dimension: %d\n", stats.Dimension)
		fmt.Printf("M: %d  efConstruction: %d  efSearch: %d\n", stats.M, stats.EfConstruction, stats.EfSearch)
		fmt.Printf("dirty: %v  deletedFraction: %.2f\n", stats.Dirty, stats.DeletedFraction)
		fmt.Printf("recall: %s\n", stats.RecallHint)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a collection's contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := db.DeleteCollection(flagCollection); err != nil {
			return wrapNotFound(err, flagCollection)
		}
		if _, err := db.CreateCollection(flagCollection); err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"collection": flagCollection, "cleared": true})
		}
		fmt.Printf("cleared %q\n", flagCollection)
		return nil
	},
}

func wrapNotFound(err error, name string) error {
	if errors.Is(err, vecstream.ErrNoSuchCollection) {
		return userErrf("collection %q not found: %w", name, err)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
