// Command audiorec is the interactive command-line recorder: it prompts
// for a device, sample rate, channel count and output filename, records
// until interrupted, and saves the result as WAV or AAC.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/petems/audiorec/internal/audio"
	"github.com/petems/audiorec/internal/config"
	"github.com/petems/audiorec/internal/logging"
	"github.com/petems/audiorec/internal/output"
	"github.com/petems/audiorec/internal/permissions"
	"github.com/petems/audiorec/internal/session"
	"github.com/petems/audiorec/internal/transcode"
)

func main() {
	os.Exit(run())
}

func run() int {
	listOnly := flag.Bool("list", false, "list audio input devices and exit")
	outFlag := flag.String("o", "", "output file path (prompted when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to load config: %v\n", err)
		return 1
	}

	// Diagnostics go to the log file so prompts stay readable
	log := logging.NewFileOnly(cfg.LogLevel)

	fmt.Println("audiorec - high-quality audio recorder")

	if err := permissions.EnsurePermissions(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 1
	}

	src, err := audio.New(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to initialize audio: %v\n", err)
		return 1
	}
	defer src.Close()

	enc := transcode.New(log)
	if cfg.Output.Bitrate != "" {
		enc.Bitrate = cfg.Output.Bitrate
	}

	format := cfg.Output.Format
	if enc.Available() {
		fmt.Println("✓ ffmpeg available - AAC encoding supported")
	} else {
		fmt.Println("⚠ ffmpeg not found - will save as WAV only")
		format = config.FormatWAV
	}

	devices, err := src.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(os.Stderr, "✗ No input devices found!")
		return 1
	}

	fmt.Printf("\nFound %d input device(s):\n\n", len(devices))
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf(" %s [%d] %s\n", marker, d.Index, d.Name)
		fmt.Printf("       Max channels: %d\n", d.MaxInputChannels)
		fmt.Printf("       Default sample rate: %d Hz\n", d.DefaultSampleRate)
	}

	if *listOnly {
		return 0
	}

	reader := bufio.NewReader(os.Stdin)

	dev, err := promptDevice(reader, devices)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n✗ %v\n", err)
		return 1
	}

	rate, err := promptSampleRate(reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n✗ %v\n", err)
		return 1
	}

	channels, err := promptChannels(reader, dev.MaxInputChannels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n✗ %v\n", err)
		return 1
	}

	outPath := *outFlag
	if outPath == "" {
		defaultName := output.DefaultFilename(format)
		fmt.Printf("\nOutput filename [default: %s]: ", defaultName)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n✗ Cancelled\n")
			return 1
		}
		outPath = strings.TrimSpace(line)
		if outPath == "" {
			outPath = defaultName
		}
	}

	fmt.Printf("\nDevice:       %s\n", dev.Name)
	fmt.Printf("Sample rate:  %d Hz\n", rate)
	fmt.Printf("Channels:     %d\n", channels)
	fmt.Printf("Output:       %s\n", outPath)

	sess := session.New(src, log)
	applied, err := sess.Start(audio.StreamParams{
		DeviceIndex: dev.Index,
		SampleRate:  rate,
		Channels:    channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to start recording: %v\n", err)
		return 1
	}

	if applied.SampleRate != rate {
		fmt.Printf("⚠ Device doesn't support %d Hz, using device default: %d Hz\n", rate, applied.SampleRate)
	}
	if applied.Channels != channels {
		fmt.Printf("⚠ Device supports max %d channel(s), adjusting\n", applied.Channels)
	}

	fmt.Println("\n🔴 RECORDING... (Ctrl+C to stop)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(2 * time.Second)
	streamFailed := false

loop:
	for {
		select {
		case <-sig:
			fmt.Println("\n\n⏹  Recording stopped")
			break loop
		case err := <-sess.Errs():
			fmt.Fprintf(os.Stderr, "\n\n✗ Recording error: %v\n", err)
			streamFailed = true
			break loop
		case <-ticker.C:
			elapsed := int(sess.Elapsed().Seconds())
			fmt.Printf("⏱  %02d:%02d - %d frames recorded\r", elapsed/60, elapsed%60, sess.Frames())
		}
	}
	ticker.Stop()
	signal.Stop(sig)

	res, err := sess.Stop()
	if errors.Is(err, session.ErrNothingRecorded) {
		fmt.Fprintln(os.Stderr, "✗ No audio was recorded")
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to stop recording: %v\n", err)
		return 1
	}

	fmt.Printf("\n✓ Recording completed: %.2f seconds\n", res.Duration.Seconds())

	saved, err := output.Save(context.Background(), outPath, res.Samples, res.SampleRate, res.Channels, enc, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error saving file: %v\n", err)
		return 1
	}

	if saved.FellBack {
		fmt.Println("⚠ Encoder unavailable, saved as WAV instead of AAC")
	}
	fmt.Printf("✓ Saved: %s (%d Hz, %d channel(s))\n", saved.Path, res.SampleRate, res.Channels)

	if streamFailed {
		return 1
	}
	return 0
}

func promptDevice(reader *bufio.Reader, devices []audio.Device) (audio.Device, error) {
	for {
		fmt.Printf("\nSelect device number: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return audio.Device{}, fmt.Errorf("cancelled")
		}

		idx, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Println("✗ Please enter a valid number.")
			continue
		}

		for _, d := range devices {
			if d.Index == idx {
				return d, nil
			}
		}
		fmt.Println("✗ Invalid device number. Please choose from the list above.")
	}
}

func promptSampleRate(reader *bufio.Reader) (int, error) {
	fmt.Println("\nAvailable sample rates:")
	fmt.Println("  [1] 44100 Hz (CD quality)")
	fmt.Println("  [2] 48000 Hz (Professional, recommended)")
	fmt.Println("  [3] 96000 Hz (High-res audio)")

	for {
		fmt.Printf("\nSelect sample rate [1-3, default=2]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("cancelled")
		}

		choice := strings.TrimSpace(line)
		if choice == "" {
			choice = "2"
		}

		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(config.SampleRates) {
			fmt.Println("✗ Invalid choice. Please select 1, 2, or 3.")
			continue
		}
		return config.SampleRates[n-1], nil
	}
}

func promptChannels(reader *bufio.Reader, maxChannels int) (int, error) {
	fmt.Printf("\nAvailable channels (max: %d):\n", maxChannels)
	fmt.Println("  [1] Mono (1 channel)")
	if maxChannels >= 2 {
		fmt.Println("  [2] Stereo (2 channels, recommended)")
	}

	def := "1"
	if maxChannels >= 2 {
		def = "2"
	}

	for {
		fmt.Printf("\nSelect channels [1-2, default=%s]: ", def)
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("cancelled")
		}

		choice := strings.TrimSpace(line)
		if choice == "" {
			choice = def
		}

		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || (n == 2 && maxChannels < 2) || n > 2 {
			fmt.Println("✗ Invalid choice or unsupported by device.")
			continue
		}
		return n, nil
	}
}
