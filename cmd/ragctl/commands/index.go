package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"tenantrag/internal/app"
	"tenantrag/internal/transport/pubsub"
)

func NewIndexCmd() *cobra.Command {
	var tenantID string
	var wait bool

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Upload every PDF in a directory for a tenant",
		Long: `Upload every *.pdf file directly under <dir> through the same path as the
HTTP upload: size and page checks, quota reservation, blob write and job
enqueue. A running worker indexes the documents.

With --wait the command follows each document's progress until it completes
or fails.

Examples:
  ragctl index ./manuals --tenant acme
  ragctl index ./manuals --tenant acme --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := listPDFs(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("index: no pdf files in %s", args[0])
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			docs := a.DocumentService()
			out := cmd.OutOrStdout()

			var failed int
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("index: read %s: %w", path, err)
				}
				doc, err := docs.Upload(ctx, app.UploadInput{
					TenantID: tenantID,
					Filename: filepath.Base(path),
					Data:     data,
				})
				if err != nil {
					failed++
					fmt.Fprintf(out, "%-40s rejected: %v\n", filepath.Base(path), err)
					if errors.Is(err, app.ErrTenantNotFound) || errors.Is(err, app.ErrPageQuotaExceeded) {
						break
					}
					continue
				}
				fmt.Fprintf(out, "%-40s queued as %s (%d pages)\n", doc.Filename, doc.ID, doc.NumPages)

				if wait {
					ok, err := followProgress(ctx, out, docs, tenantID, doc.ID)
					if err != nil {
						return fmt.Errorf("index: %w", err)
					}
					if !ok {
						failed++
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("index: %d of %d file(s) not indexed", failed, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id that owns the documents")
	cmd.Flags().BoolVar(&wait, "wait", false, "Follow progress until each document finishes")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// followProgress prints progress events and reports whether the document
// completed.
func followProgress(ctx context.Context, out io.Writer, docs *app.DocumentService, tenantID, id string) (bool, error) {
	sub, doc, err := docs.WatchProgress(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return printProgress(out, app.FinalEvent(doc)), nil
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case msg, ok := <-sub.Messages():
			if !ok {
				return false, pubsub.ErrBrokerClosed
			}
			var ev pubsub.ProgressEvent
			if err := msg.Decode(&ev); err != nil {
				log.Warn("skip malformed progress event", "error", err)
				continue
			}
			done := printProgress(out, ev)
			if ev.Done {
				return done, nil
			}
		}
	}
}

func printProgress(out io.Writer, ev pubsub.ProgressEvent) bool {
	if ev.Error != "" {
		fmt.Fprintf(out, "  [%3d%%] %s: %s (%s)\n", ev.Progress, ev.Step, ev.Message, ev.Error)
	} else {
		fmt.Fprintf(out, "  [%3d%%] %s: %s\n", ev.Progress, ev.Step, ev.Message)
	}
	return ev.Step == app.StepCompleted
}
