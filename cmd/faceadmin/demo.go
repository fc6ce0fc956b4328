package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/capture"
	"github.com/MrCodeEU/faceadmin/pkg/enrollment"
	"github.com/MrCodeEU/faceadmin/pkg/imageutil"
	"github.com/MrCodeEU/faceadmin/pkg/service"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// demoService is the part of service.Service the demo menu drives.
type demoService interface {
	Register(ctx context.Context, req service.RegisterRequest) enrollment.Result
	Authenticate(ctx context.Context, req service.AuthRequest) auth.Result
	List() []storage.Summary
	Detect(image []byte) (service.DetectResult, error)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Interactive menu for trying registration and authentication",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		d := &demo{
			svc:    svc,
			in:     bufio.NewScanner(os.Stdin),
			out:    os.Stdout,
			outDir: ".",
			grab:   grabFrame,
		}
		return d.run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// grabFrame reads a single frame from the configured camera.
func grabFrame(ctx context.Context) ([]byte, error) {
	cam, err := capture.Open(ctx, capture.LiveDevice(cfg.Capture.Device), service.CaptureOptions(cfg))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cam.Close() }()
	return cam.NextFrame(ctx)
}

type demo struct {
	svc    demoService
	in     *bufio.Scanner
	out    io.Writer
	outDir string
	grab   func(ctx context.Context) ([]byte, error)
}

func (d *demo) run(ctx context.Context) error {
	fmt.Fprintln(d.out, "=== Face Recognition Admin Login ===")
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(d.out)
		fmt.Fprintln(d.out, "1. Register new admin")
		fmt.Fprintln(d.out, "2. Authenticate")
		fmt.Fprintln(d.out, "3. List admins")
		fmt.Fprintln(d.out, "4. Test face detection")
		fmt.Fprintln(d.out, "5. Exit")

		choice, ok := d.prompt("Select option: ")
		if !ok {
			return nil
		}

		switch choice {
		case "1":
			d.register(ctx)
		case "2":
			d.authenticate(ctx)
		case "3":
			printAdmins(d.out, d.svc.List())
		case "4":
			d.detect(ctx)
		case "5":
			fmt.Fprintln(d.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(d.out, "Invalid option")
		}
	}
}

// prompt returns the next trimmed input line, or false at end of input.
func (d *demo) prompt(label string) (string, bool) {
	fmt.Fprint(d.out, label)
	if !d.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(d.in.Text()), true
}

func (d *demo) register(ctx context.Context) {
	idText, ok := d.prompt("Admin ID: ")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		fmt.Fprintln(d.out, "Admin ID must be a number")
		return
	}
	name, ok := d.prompt("Admin name: ")
	if !ok {
		return
	}
	path, ok := d.prompt("Image path (empty for camera): ")
	if !ok {
		return
	}

	req := service.RegisterRequest{AdminID: id, Name: name, ImagePath: path}
	if path == "" {
		fmt.Fprintln(d.out, "Look at the camera...")
		req.OnSample = func(count, total int) {
			fmt.Fprintf(d.out, "  sample %d/%d\n", count, total)
		}
	}

	res := d.svc.Register(ctx, req)
	if res.Success {
		fmt.Fprintf(d.out, "✓ %s\n", res.Message)
		return
	}
	fmt.Fprintf(d.out, "✗ %s\n", res.Message)
}

func (d *demo) authenticate(ctx context.Context) {
	path, ok := d.prompt("Image path (empty for camera): ")
	if !ok {
		return
	}
	if path == "" {
		fmt.Fprintln(d.out, "Look at the camera...")
	}

	res := d.svc.Authenticate(ctx, service.AuthRequest{ImagePath: path})
	if res.Success {
		fmt.Fprintf(d.out, "✓ %s (ID %d, confidence %.2f%%)\n", res.Message, res.AdminID, math.Round(res.Confidence*100)/100)
		return
	}
	fmt.Fprintf(d.out, "✗ %s\n", res.Message)
}

func (d *demo) detect(ctx context.Context) {
	path, ok := d.prompt("Image path (empty for camera): ")
	if !ok {
		return
	}

	var data []byte
	var err error
	if path == "" {
		data, err = d.grab(ctx)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(d.out, "✗ Could not read image: %v\n", err)
		return
	}

	res, err := d.svc.Detect(data)
	if err != nil {
		fmt.Fprintf(d.out, "✗ %v\n", err)
		return
	}
	if !res.FaceDetected {
		fmt.Fprintln(d.out, "✗ No face detected")
		return
	}

	box := res.FaceBox
	fmt.Fprintf(d.out, "✓ Face at x=%d y=%d (%dx%d)\n", box.X, box.Y, box.Width, box.Height)

	annotated, err := imageutil.DecodeBase64(res.AnnotatedImage)
	if err != nil {
		fmt.Fprintf(d.out, "✗ %v\n", err)
		return
	}
	target := filepath.Join(d.outDir, "detection_test.jpg")
	if err := os.WriteFile(target, annotated, 0644); err != nil {
		fmt.Fprintf(d.out, "✗ Could not save preview: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Saved annotated image to %s\n", target)
}
