package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/camera/v4l"
	"booth-camera/pkg/texture"
)

// Runs the booth flow against real hardware in a loop:
// 1) initialize the camera
// 2) start the preview and wait for frames
// 3) take a picture while previewing
// 4) dispose
func main() {
	id := flag.String("d", "0", "device id")
	w := flag.Int("w", 1280, "width")
	h := flag.Int("h", 720, "height")
	n := flag.Int("n", 10, "frames to wait for in each iteration")
	loops := flag.Int("loops", 0, "iterations, 0 runs forever")
	dir := flag.String("dir", ".", "where stills are written")
	timeout := flag.Duration("timeout", 5*time.Second, "frame timeout")
	flag.Parse()

	textures := texture.NewRegistry()
	ctrl := camera.NewController(
		v4l.New(v4l.Config{Width: *w, Height: *h}),
		textures,
		camera.WithPhotoWriter(camera.TempWriter{Dir: *dir}),
	)
	defer ctrl.Close()

	for iter := 1; *loops == 0 || iter <= *loops; iter++ {
		fmt.Printf("\n===== iteration %d =====\n", iter)

		fmt.Printf("[1/4] initialize %q...\n", *id)
		tex, err := ctrl.Initialize(context.Background(), *id)
		if err != nil {
			fmt.Println("initialize failed:", err)
			os.Exit(1)
		}
		dev, _ := ctrl.ActiveDevice()
		fmt.Printf("%s (%s) on texture %d\n", dev.Name, dev.UniqueID, tex)

		fmt.Printf("[2/4] preview, reading %d frames...\n", *n)
		if err = ctrl.StartPreview(); err != nil {
			fmt.Println("start preview failed:", err)
			os.Exit(1)
		}
		readFrames(textures, tex, *n, *timeout)

		fmt.Println("[3/4] take picture...")
		photo, err := ctrl.TakePicture(context.Background())
		if err != nil {
			fmt.Println("take picture failed:", err)
			os.Exit(1)
		}
		fmt.Printf("saved %s, %s\n", photo.Path, humanize.Bytes(uint64(photo.Size)))

		fmt.Println("[4/4] dispose")
		if err = ctrl.Dispose(); err != nil {
			fmt.Println("dispose failed:", err)
			os.Exit(1)
		}

		time.Sleep(500 * time.Millisecond)
	}
}

func readFrames(textures *texture.Registry, id int64, n int, timeout time.Duration) {
	var seq uint64
	for got := 0; got < n; got++ {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		f, next, err := textures.Wait(ctx, id, seq)
		cancel()
		if err != nil {
			fmt.Println("read preview frame failed:", err)
			os.Exit(1)
		}
		seq = next
		fmt.Printf("frame %d (#%d), %s\n", got+1, f.Seq, humanize.Bytes(uint64(len(f.Data))))
	}
}
