package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"WaveDeck/client"
	"WaveDeck/core/catalog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	uploadType  string
	fetchRange  string
	fetchOutput string
)

// extensionTypes maps file extensions to the MIME type sent on upload.
var extensionTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
}

func defaultServerURL() string {
	if v := os.Getenv("WAVEDECK_URL"); v != "" {
		return v
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Manage tracks on a running WaveDeck server",
}

var tracksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracks in playlist order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracks, err := client.NewClient(serverURL).Tracks(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSIZE\tDURATION\tTYPE\tUPLOADED")
		for _, t := range tracks {
			duration := "-"
			if t.HasDuration() {
				duration = (time.Duration(*t.Duration * float64(time.Second))).Round(time.Second).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.OriginalName, humanize.IBytes(uint64(t.FileSize)), duration, t.MimeType, humanize.Time(t.CreatedAt))
		}
		return tw.Flush()
	},
}

var tracksUploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(serverURL)
		for _, path := range args {
			contentType := uploadType
			if contentType == "" {
				contentType = extensionTypes[strings.ToLower(filepath.Ext(path))]
			}
			if contentType == "" {
				return fmt.Errorf("cannot tell the audio type of %s, pass --type", path)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			track, err := c.Upload(cmd.Context(), filepath.Base(path), f, contentType)
			f.Close()
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			fmt.Printf("%s\t%s\t%s\n", track.ID, track.OriginalName, humanize.IBytes(uint64(track.FileSize)))
		}
		return nil
	},
}

var tracksDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete tracks and their audio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(serverURL)
		for _, id := range args {
			if err := c.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Printf("deleted %s\n", id)
		}
		return nil
	},
}

var tracksFetchCmd = &cobra.Command{
	Use:   "fetch ID",
	Short: "Download a track, or a byte range of it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.NewClient(serverURL).Stream(cmd.Context(), args[0], fetchRange)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out io.Writer = os.Stdout
		if fetchOutput != "" && fetchOutput != "-" {
			f, err := os.Create(fetchOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		n, err := io.Copy(out, resp.Body)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s, %s", resp.Status, humanize.IBytes(uint64(n)))
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			fmt.Fprintf(os.Stderr, " (%s)", cr)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	},
}

var tracksWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print catalog changes as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		err := client.NewClient(serverURL).Subscribe(ctx, func(msg catalog.Message) {
			switch msg.Type {
			case catalog.MsgTypeSync:
				fmt.Printf("sync\t%d tracks\n", len(msg.Tracks))
			case catalog.MsgTypeTrackCreated:
				name := ""
				if msg.Track != nil {
					name = msg.Track.OriginalName
				}
				fmt.Printf("created\t%s\t%s\n", msg.TrackID, name)
			case catalog.MsgTypeTrackDeleted:
				fmt.Printf("deleted\t%s\n", msg.TrackID)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	tracksCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "WaveDeck server URL")
	tracksUploadCmd.Flags().StringVar(&uploadType, "type", "", "MIME type to send instead of guessing from the extension")
	tracksFetchCmd.Flags().StringVarP(&fetchRange, "range", "r", "", `Range header to send, e.g. "bytes=0-1023"`)
	tracksFetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write to this file instead of stdout")

	tracksCmd.AddCommand(tracksListCmd, tracksUploadCmd, tracksDeleteCmd, tracksFetchCmd, tracksWatchCmd)
	rootCmd.AddCommand(tracksCmd)
}
