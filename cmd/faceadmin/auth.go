package main

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/service"
)

var authOpts struct {
	camera  int
	image   string
	timeout time.Duration
}

var authCmd = &cobra.Command{
	Use:     "auth",
	Aliases: []string{"authenticate"},
	Short:   "Authenticate a face against the registered admins",
	Example: `  faceadmin auth
  faceadmin auth --image probe.jpg`,
	RunE: runAuth,
}

func init() {
	f := authCmd.Flags()
	f.IntVar(&authOpts.camera, "camera", 0, "Camera device index (default from config)")
	f.StringVar(&authOpts.image, "image", "", "Authenticate from an image file instead of the camera")
	f.DurationVar(&authOpts.timeout, "timeout", 0, "Session timeout (default from config)")
	rootCmd.AddCommand(authCmd)
}

// authOutput is the JSON printed by the auth command.
type authOutput struct {
	Success    bool    `json:"success"`
	AdminID    *int64  `json:"admin_id"`
	AdminName  *string `json:"admin_name"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
}

func newAuthOutput(res auth.Result) authOutput {
	out := authOutput{Success: res.Success, Message: res.Message}
	if res.Success {
		out.AdminID = &res.AdminID
		out.AdminName = &res.Name
		out.Confidence = math.Round(res.Confidence*100) / 100
	}
	return out
}

func runAuth(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	req := service.AuthRequest{
		ImagePath: authOpts.image,
		Timeout:   authOpts.timeout,
	}
	if cmd.Flags().Changed("camera") {
		req.Camera = &authOpts.camera
	}

	res := svc.Authenticate(cmd.Context(), req)

	data, err := json.MarshalIndent(newAuthOutput(res), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if !res.Success {
		return fmt.Errorf("authentication failed: %s", res.Message)
	}
	return nil
}
