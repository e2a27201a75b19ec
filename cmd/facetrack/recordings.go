package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/facetrack/internal/store"
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "Manage saved recordings",
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recordings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			return runRecordingsList(cmd.Context(), st)
		})
	},
}

var recordingsExportCmd = &cobra.Command{
	Use:   "export [key]",
	Short: "Write a saved recording to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := cfg.Recording.PersistKey
		if len(args) == 1 {
			key = args[0]
		}
		out, _ := cmd.Flags().GetString("output")
		return withStore(func(st *store.Store) error {
			return runRecordingsExport(cmd.Context(), st, key, out)
		})
	},
}

var recordingsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a saved recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			if err := st.Recordings().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	recordingsExportCmd.Flags().StringP("output", "o", "", "Output file (default: face-recording.<ext> in the current directory)")

	recordingsCmd.AddCommand(recordingsListCmd, recordingsExportCmd, recordingsDeleteCmd)
	rootCmd.AddCommand(recordingsCmd)
}

func withStore(fn func(st *store.Store) error) error {
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func runRecordingsList(ctx context.Context, st *store.Store) error {
	recordings, err := st.Recordings().List(ctx)
	if err != nil {
		return err
	}

	if len(recordings) == 0 {
		fmt.Println("No recordings found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tFILE\tSIZE\tSAVED")
	fmt.Fprintln(w, "---\t----\t----\t-----")
	for _, r := range recordings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Key, r.Filename(), humanize.Bytes(uint64(r.Size)), humanize.Time(r.UpdatedAt))
	}
	return w.Flush()
}

func runRecordingsExport(ctx context.Context, st *store.Store, key, out string) error {
	artifact, err := st.Recordings().Retrieve(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no recording saved under %q", key)
	}
	if err != nil {
		return err
	}

	if out == "" {
		out = artifact.Filename()
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	bar := progressbar.NewOptions64(int64(artifact.Size()),
		progressbar.OptionSetDescription("Exporting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
	)
	if _, err := io.Copy(io.MultiWriter(f, bar), bytes.NewReader(artifact.Data)); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Printf("Wrote %s (%s)\n", out, humanize.Bytes(uint64(artifact.Size())))
	return nil
}
