package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"streamfm/service"
)

var (
	uploadTitle  string
	uploadArtist string
	uploadAlbum  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an audio file to the catalog",
	Long:  `Upload a single audio file (mp3, wav, ogg, m4a or aac) without starting the interactive client.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer app.close()

		if !app.auth.IsAuthenticated() {
			return fmt.Errorf("not signed in, run the interactive client and sign in first")
		}

		path := args[0]
		title := uploadTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		artist := uploadArtist
		if artist == "" {
			if user := app.auth.CurrentUser(); user != nil && user.Username != "" {
				artist = user.Username
			}
		}

		track, err := app.upload.UploadSong(context.Background(), service.SongUpload{
			Title:    title,
			Artist:   artist,
			Album:    uploadAlbum,
			FilePath: path,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %q (id %d)\n", track.Title, track.ID)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadTitle, "title", "t", "", "song title (defaults to the file name)")
	uploadCmd.Flags().StringVarP(&uploadArtist, "artist", "a", "", "artist name (defaults to your username)")
	uploadCmd.Flags().StringVar(&uploadAlbum, "album", "", "album name")
	rootCmd.AddCommand(uploadCmd)
}
