package main

import (
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/api"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		if cfg.Server.APIKey == "" {
			logging.Warn("No API key configured, the API is open to any client")
		}

		router := api.NewRouter(api.RouterConfig{
			Service:       svc,
			APIKey:        cfg.Server.APIKey,
			CORS:          cfg.Server.CORS,
			CameraTimeout: cfg.CameraAuthTimeout(),
		})
		logging.Infof("Registered admins: %d", svc.Store().Len())
		return api.Run(cmd.Context(), addr, router)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
