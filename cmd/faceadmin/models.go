package main

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/logging"
)

type modelFile struct {
	Name string
	URL  string
}

var dlibModels = []modelFile{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage face recognition models",
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [dir]",
	Short: "Download the dlib models",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelDir := cfg.Recognition.ModelPath
		if len(args) > 0 {
			modelDir = args[0]
		}
		return downloadModels(cmd.Context(), http.DefaultClient, modelDir, dlibModels, os.Stderr)
	},
}

func init() {
	modelsCmd.AddCommand(modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}

func downloadModels(ctx context.Context, client *http.Client, modelDir string, models []modelFile, progress io.Writer) error {
	logging.Infof("Downloading models to: %s", modelDir)

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, model := range models {
		targetPath := filepath.Join(modelDir, model.Name)
		if _, err := os.Stat(targetPath); err == nil {
			logging.Infof("Model %s already exists, skipping", model.Name)
			continue
		}

		if err := downloadAndExtract(ctx, client, model, targetPath, progress); err != nil {
			return fmt.Errorf("failed to download %s: %w", model.Name, err)
		}
		logging.Infof("Downloaded %s", model.Name)
	}

	logging.Info("All models are in place")
	return nil
}

// downloadAndExtract streams a bzip2 archive into targetPath. The file only
// appears under its final name once fully written.
func downloadAndExtract(ctx context.Context, client *http.Client, model modelFile, targetPath string, progress io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), "."+model.Name+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(model.Name),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	body := io.TeeReader(resp.Body, bar)

	if _, err := io.Copy(tmp, bzip2.NewReader(body)); err != nil {
		_ = tmp.Close()
		return err
	}
	_ = bar.Finish()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, targetPath)
}
