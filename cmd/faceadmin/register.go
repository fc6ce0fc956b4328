package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/service"
)

var registerOpts struct {
	adminID   int64
	adminName string
	camera    int
	image     string
	samples   int
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new admin face",
	Example: `  faceadmin register --admin-id 1 --admin-name "Jane Doe"
  faceadmin register --admin-id 2 --admin-name "John Roe" --image john.jpg`,
	RunE: runRegister,
}

func init() {
	f := registerCmd.Flags()
	f.Int64Var(&registerOpts.adminID, "admin-id", 0, "Admin ID (required)")
	f.StringVar(&registerOpts.adminName, "admin-name", "", "Admin display name (required)")
	f.IntVar(&registerOpts.camera, "camera", 0, "Camera device index (default from config)")
	f.StringVar(&registerOpts.image, "image", "", "Register from an image file instead of the camera")
	f.IntVar(&registerOpts.samples, "samples", 0, "Number of camera samples (default from config)")
	_ = registerCmd.MarkFlagRequired("admin-id")
	_ = registerCmd.MarkFlagRequired("admin-name")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	req := service.RegisterRequest{
		AdminID:   registerOpts.adminID,
		Name:      registerOpts.adminName,
		ImagePath: registerOpts.image,
		Samples:   registerOpts.samples,
	}
	if cmd.Flags().Changed("camera") {
		req.Camera = &registerOpts.camera
	}

	if req.ImagePath == "" {
		target := cfg.Enrollment.Samples
		if req.Samples > 0 {
			target = req.Samples
		}
		fmt.Printf("Registering '%s'. Look at the camera, capturing %d samples...\n", req.Name, target)
		bar := progressbar.NewOptions(target,
			progressbar.OptionSetDescription("Capturing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		req.OnSample = func(count, total int) {
			_ = bar.Set(count)
		}
		defer func() { _ = bar.Finish() }()
	}

	res := svc.Register(cmd.Context(), req)
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}

	fmt.Println(res.Message)
	return nil
}
