package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"streamfm/client"
	"streamfm/config"
	"streamfm/core/player"
	"streamfm/core/realtime"
	"streamfm/logger"
	"streamfm/service"
	"streamfm/session"
	"streamfm/ui"
)

var rootCmd = &cobra.Command{
	Use:   "streamfm",
	Short: "streamfm is a terminal client for the FM streaming service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer app.close()

		chat := realtime.New(app.cfg.SocketURL, realtime.DialWebSocket)
		defer chat.Disconnect()

		backend := player.NewFFPlay("ffplay", "ffprobe")
		ply := player.New(backend)
		defer ply.Close()

		tui := ui.NewApp(&ui.Deps{
			Auth:      app.auth,
			Tracks:    app.tracks,
			Favorites: app.favorites,
			Upload:    app.upload,
			Player:    ply,
			Chat:      chat,
			Room:      app.cfg.ChatRoom,
		})
		defer tui.Close()

		program := tea.NewProgram(tui, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("tui exited with error: %w", err)
		}
		return nil
	},
}

// appContext is the composition root shared by every command.
type appContext struct {
	cfg       *config.Config
	store     *session.Store
	auth      *service.Auth
	tracks    *service.Tracks
	favorites *service.Favorites
	upload    *service.Upload
}

func (a *appContext) close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close session store", logger.ErrorField(err))
	}
}

// bootstrap loads configuration, initializes logging and wires the
// gateway clients plus feature services. Interactive commands pass
// quiet to keep log output off the terminal.
func bootstrap(quiet bool) (*appContext, error) {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
		Quiet:      quiet,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := session.Open(filepath.Join(cfg.DataDir, "session.db"))
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second}
	userAPI := client.New(cfg.UserServiceURL, httpClient, store, cfg.HTTPRateLimit)
	musicAPI := client.New(cfg.MusicServiceURL, httpClient, store, cfg.HTTPRateLimit)

	return &appContext{
		cfg:       cfg,
		store:     store,
		auth:      service.NewAuth(userAPI, store),
		tracks:    service.NewTracks(musicAPI),
		favorites: service.NewFavorites(musicAPI, store),
		upload:    service.NewUpload(musicAPI),
	}, nil
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
