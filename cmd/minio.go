package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"WaveDeck/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	minioStats  bool
	minioDelete string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the MinIO audio bucket",
	Long:  `List the audio objects stored in the configured MinIO bucket, show totals, or remove one object by key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return fmt.Errorf("cannot connect to MinIO: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if minioDelete != "" {
			if err := store.Remove(ctx, minioDelete); err != nil {
				return fmt.Errorf("failed to remove %s: %w", minioDelete, err)
			}
			fmt.Printf("removed %s\n", store.Location(minioDelete))
			return nil
		}

		objects, err := store.List(ctx)
		if err != nil {
			return err
		}

		var total int64
		if !minioStats {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tTYPE\tMODIFIED")
			for _, obj := range objects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", obj.Key, humanize.IBytes(uint64(obj.Size)), obj.ContentType, humanize.Time(obj.LastModified))
			}
			tw.Flush()
		}
		for _, obj := range objects {
			total += obj.Size
		}
		fmt.Printf("%d objects, %s\n", len(objects), humanize.IBytes(uint64(total)))
		return nil
	},
}

func init() {
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "only print totals")
	minioCmd.Flags().StringVar(&minioDelete, "delete", "", "remove the object with this storage key")
	rootCmd.AddCommand(minioCmd)
}
