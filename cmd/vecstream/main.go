// Command vecstream is a thin CLI over the vecstream embedded vector
// database: add/search/get/remove/info/clear and collection management.
// Exit code 0 on success, 1 on user error, 2 on internal error.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/torinriley/vecstream"
	"github.com/torinriley/vecstream/collection"
	"github.com/torinriley/vecstream/hnsw"
)

const (
	exitOK       = 0
	exitUserErr  = 1
	exitInternal = 2
)

var (
	flagDBPath     string
	flagCollection string
	flagJSON       bool
	flagVerbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:           "vecstream",
	Short:         "Embedded vector database CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "database root directory (defaults to VECSTREAM_DB_PATH or the platform default)")
	rootCmd.PersistentFlags().StringVar(&flagCollection, "collection", "default", "collection name")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(collectionCmd)
}

// userError marks an error as a user-facing mistake (exit code 1), as
// opposed to an unexpected internal failure (exit code 2).
type userError struct{ err error }

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func userErrf(format string, args ...any) error {
	return &userError{err: fmt.Errorf(format, args...)}
}

// exitCodeFor classifies an error into one of the CLI's three exit codes:
// IOError/CorruptStore/IndexInconsistency are internal failures (2);
// everything else — explicit user errors, validation errors, bad cobra
// arguments — is a user error (1). Errors returned by a Collection handle are
// not translated to the root kinds, so their package-local sentinels are
// checked as well.
func exitCodeFor(err error) int {
	if errors.Is(err, vecstream.ErrIOError) ||
		errors.Is(err, vecstream.ErrCorruptStore) ||
		errors.Is(err, vecstream.ErrIndexInconsistency) ||
		errors.Is(err, collection.ErrIOError) ||
		errors.Is(err, collection.ErrCorruptStore) ||
		errors.Is(err, hnsw.ErrIndexInconsistency) {
		return exitInternal
	}
	return exitUserErr
}

func openDB() (*vecstream.DB, error) {
	opts := []vecstream.Option{}
	if flagVerbose {
		opts = append(opts, vecstream.WithLogLevel(slog.LevelDebug))
	}
	db, err := vecstream.Open(flagDBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
