package tray

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog"

	"github.com/petems/audiorec/internal/audio"
	"github.com/petems/audiorec/internal/config"
	"github.com/petems/audiorec/internal/output"
	"github.com/petems/audiorec/internal/session"
	"github.com/petems/audiorec/internal/transcode"
)

const tickInterval = 500 * time.Millisecond

type UI struct {
	sess    *session.Session
	src     audio.Source
	enc     *transcode.Encoder
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// devMu guards devices and deviceItems; the click goroutines and the
	// event loop both touch them.
	devMu       sync.Mutex
	devices     []audio.Device
	deviceItems map[string]*systray.MenuItem

	// Menu items
	mStart    *systray.MenuItem
	mStop     *systray.MenuItem
	mDevices  *systray.MenuItem
	mRate     *systray.MenuItem
	mChannels *systray.MenuItem
	mFormat   *systray.MenuItem
	mCopyPath *systray.MenuItem
}

func New(sess *session.Session, src audio.Source, enc *transcode.Encoder, cfg *config.Config, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		sess:        sess,
		src:         src,
		enc:         enc,
		cfg:         cfg,
		version:     version,
		commit:      commit,
		log:         log,
		deviceItems: make(map[string]*systray.MenuItem),
	}
}

func (u *UI) Run(ctx context.Context) error {
	quitOnCancel(ctx, systray.Quit)
	systray.Run(u.onReady, u.onExit)
	return nil
}

// quitOnCancel ends the tray loop when the context is cancelled
func quitOnCancel(ctx context.Context, quit func()) {
	go func() {
		<-ctx.Done()
		quit()
	}()
}

func (u *UI) onReady() {
	u.updateStatus()
	systray.SetTooltip("High-quality audio recorder")

	u.mStart = systray.AddMenuItem("Start Recording", "Begin capturing audio")
	u.mStop = systray.AddMenuItem("Stop Recording", "Stop and save")
	u.mStop.Disable()
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Input Device", "Select audio device")
	u.buildDeviceMenu()
	mRefresh := systray.AddMenuItem("Refresh Devices", "Rescan audio devices")

	u.mRate = systray.AddMenuItem("Sample Rate", "Select sample rate")
	u.buildRateMenu()

	u.mChannels = systray.AddMenuItem("Channels", "Mono or stereo")
	u.buildChannelMenu()

	u.mFormat = systray.AddMenuItem("Format", "Output file format")
	u.buildFormatMenu()

	systray.AddSeparator()
	u.mCopyPath = systray.AddMenuItemCheckbox("Copy Path After Save", "Put the saved file path on the clipboard", u.cfg.Output.CopyPath)

	systray.AddSeparator()
	mAbout := systray.AddMenuItem("About", "About audiorec")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.handleEvents(mRefresh, mAbout, mQuit)
	go u.watchErrors()
	go u.tick()
}

func (u *UI) handleEvents(mRefresh, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStart.ClickedCh:
			u.startRecording()
		case <-u.mStop.ClickedCh:
			u.stopAndSave()
		case <-mRefresh.ClickedCh:
			u.buildDeviceMenu()
			u.devMu.Lock()
			count := len(u.devices)
			u.devMu.Unlock()
			zenity.Info(fmt.Sprintf("Found %d input device(s)", count),
				zenity.Title("Devices Refreshed"))
		case <-u.mCopyPath.ClickedCh:
			u.toggleCopyPath()
		case <-mAbout.ClickedCh:
			zenity.Info(fmt.Sprintf("audiorec %s (%s)\nHigh-quality audio recorder", u.version, u.commit),
				zenity.Title("About audiorec"))
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// watchErrors surfaces unrecoverable stream errors. The session has
// already logged them; recording is force-stopped and whatever was
// captured is offered for saving.
func (u *UI) watchErrors() {
	for err := range u.sess.Errs() {
		zenity.Error(fmt.Sprintf("Recording error: %v\n\nTry a different device or sample rate.", err),
			zenity.Title("Recording Error"))
		if u.sess.State() == session.Recording {
			u.stopAndSave()
		}
	}
}

func (u *UI) tick() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for range ticker.C {
		if u.sess.State() == session.Recording {
			u.updateStatus()
		}
	}
}

func (u *UI) startRecording() {
	dev, err := u.selectedDevice()
	if err != nil {
		zenity.Error(err.Error(), zenity.Title("No Input Device"))
		return
	}

	req := audio.StreamParams{
		DeviceIndex: dev.Index,
		SampleRate:  u.cfg.Audio.SampleRate,
		Channels:    u.cfg.Audio.Channels,
	}

	applied, err := u.sess.Start(req)
	if err != nil {
		zenity.Error(fmt.Sprintf("Failed to start recording: %v", err), zenity.Title("Recording Error"))
		return
	}

	u.mStart.Disable()
	u.mStop.Enable()
	u.updateStatus()

	if applied.SampleRate != req.SampleRate {
		zenity.Info(fmt.Sprintf("Device doesn't support %d Hz.\nUsing %d Hz instead.", req.SampleRate, applied.SampleRate),
			zenity.Title("Sample Rate Adjusted"))
	}
	if applied.Channels != req.Channels {
		zenity.Info(fmt.Sprintf("Device supports max %d channel(s).\nAdjusting accordingly.", applied.Channels),
			zenity.Title("Channels Adjusted"))
	}
}

func (u *UI) stopAndSave() {
	res, err := u.sess.Stop()
	u.mStop.Disable()
	u.mStart.Enable()
	u.updateStatus()

	if errors.Is(err, session.ErrNothingRecorded) {
		zenity.Warning("No audio was recorded.", zenity.Title("Nothing Recorded"))
		return
	}
	if err != nil {
		zenity.Error(fmt.Sprintf("Failed to stop recording: %v", err), zenity.Title("Recording Error"))
		return
	}

	defaultName := output.DefaultFilename(u.cfg.Output.Format)
	path, err := zenity.SelectFileSave(
		zenity.Title("Save Recording"),
		zenity.Filename(filepath.Join(u.cfg.Output.Dir, defaultName)),
		zenity.ConfirmOverwrite(),
		zenity.FileFilters{
			{Name: "Audio files", Patterns: []string{"*.wav", "*.m4a", "*.aac"}, CaseFold: true},
		},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		u.log.Info().Msg("Save cancelled, recording discarded")
		zenity.Warning("Save cancelled. Recording discarded.", zenity.Title("Discarded"))
		return
	}
	if err != nil {
		zenity.Error(fmt.Sprintf("Save dialog failed: %v", err), zenity.Title("Error"))
		return
	}

	saved, err := output.Save(context.Background(), path, res.Samples, res.SampleRate, res.Channels, u.enc, u.log)
	if err != nil {
		zenity.Error(fmt.Sprintf("Error saving file: %v", err), zenity.Title("Save Failed"))
		return
	}

	if u.cfg.Output.CopyPath {
		if err := clipboard.WriteAll(saved.Path); err != nil {
			u.log.Warn().Err(err).Msg("Failed to copy path to clipboard")
		}
	}

	msg := fmt.Sprintf("Audio saved successfully!\n\nFile: %s\nDuration: %.1f seconds\nSample Rate: %d Hz\nChannels: %d",
		filepath.Base(saved.Path), res.Duration.Seconds(), res.SampleRate, res.Channels)
	if saved.FellBack {
		msg += "\n\nEncoder unavailable: saved as WAV instead of AAC."
	}
	zenity.Info(msg, zenity.Title("Success"))
}

// selectedDevice resolves the configured device name against the current
// listing, falling back to the system default input device.
func (u *UI) selectedDevice() (audio.Device, error) {
	devices, err := u.src.Devices()
	if err != nil {
		return audio.Device{}, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return audio.Device{}, fmt.Errorf("no audio input devices found")
	}

	u.devMu.Lock()
	u.devices = devices
	u.devMu.Unlock()

	name := selectedDeviceName(u.cfg.Audio.Device, devices)
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return devices[0], nil
}

// buildDeviceMenu reconciles the submenu with a fresh listing. systray
// has no item-removal API, so an item is created once per device name,
// reused on later refreshes, and hidden when its device disappears.
func (u *UI) buildDeviceMenu() {
	devices, err := u.src.Devices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	u.devMu.Lock()
	defer u.devMu.Unlock()
	u.devices = devices

	toAdd, toHide := deviceMenuDiff(u.deviceItems, devices)

	for _, dev := range devices {
		if item, ok := u.deviceItems[dev.Name]; ok {
			item.SetTitle(deviceLabel(dev))
			item.Show()
		}
	}

	for _, dev := range toAdd {
		item := u.mDevices.AddSubMenuItem(deviceLabel(dev), "")
		u.deviceItems[dev.Name] = item

		go func(name string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				u.cfg.Audio.Device = name
				u.cfg.Save()
				u.log.Info().Str("device", name).Msg("Changed audio device")
				u.devMu.Lock()
				u.refreshDeviceChecksLocked()
				u.devMu.Unlock()
			}
		}(dev.Name, item)
	}

	for _, name := range toHide {
		u.deviceItems[name].Uncheck()
		u.deviceItems[name].Hide()
	}

	u.refreshDeviceChecksLocked()
}

// deviceMenuDiff splits a fresh device listing against the items already
// built: devices that still need a menu item, and item names whose
// device is no longer present.
func deviceMenuDiff(items map[string]*systray.MenuItem, devices []audio.Device) (toAdd []audio.Device, toHide []string) {
	seen := make(map[string]bool, len(devices))
	for _, dev := range devices {
		seen[dev.Name] = true
		if _, ok := items[dev.Name]; !ok {
			toAdd = append(toAdd, dev)
		}
	}
	for name := range items {
		if !seen[name] {
			toHide = append(toHide, name)
		}
	}
	return toAdd, toHide
}

// refreshDeviceChecksLocked marks the selected device checked and every
// other item unchecked. Callers hold devMu.
func (u *UI) refreshDeviceChecksLocked() {
	selected := selectedDeviceName(u.cfg.Audio.Device, u.devices)
	for name, item := range u.deviceItems {
		if name == selected {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// selectedDeviceName resolves the configured name against a listing:
// exact match first, then the system default, then the first device.
func selectedDeviceName(configured string, devices []audio.Device) string {
	for _, d := range devices {
		if d.Name == configured {
			return configured
		}
	}
	for _, d := range devices {
		if d.Default {
			return d.Name
		}
	}
	if len(devices) > 0 {
		return devices[0].Name
	}
	return ""
}

func deviceLabel(dev audio.Device) string {
	return fmt.Sprintf("%s (%d ch, %d Hz)", dev.Name, dev.MaxInputChannels, dev.DefaultSampleRate)
}

func (u *UI) buildRateMenu() {
	rateItems := make(map[int]*systray.MenuItem)

	for _, rate := range config.SampleRates {
		item := u.mRate.AddSubMenuItem(fmt.Sprintf("%d Hz", rate), "")
		if rate == u.cfg.Audio.SampleRate {
			item.Check()
		}
		rateItems[rate] = item

		go func(r int, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				for rr, itm := range rateItems {
					if rr != r {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.cfg.Audio.SampleRate = r
				u.cfg.Save()
				u.log.Info().Int("sample_rate", r).Msg("Changed sample rate")
			}
		}(rate, item)
	}
}

func (u *UI) buildChannelMenu() {
	labels := map[int]string{1: "Mono (1)", 2: "Stereo (2)"}
	channelItems := make(map[int]*systray.MenuItem)

	for _, ch := range []int{1, 2} {
		item := u.mChannels.AddSubMenuItem(labels[ch], "")
		if ch == u.cfg.Audio.Channels {
			item.Check()
		}
		channelItems[ch] = item

		go func(c int, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				for cc, itm := range channelItems {
					if cc != c {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.cfg.Audio.Channels = c
				u.cfg.Save()
				u.log.Info().Int("channels", c).Msg("Changed channel count")
			}
		}(ch, item)
	}
}

func (u *UI) buildFormatMenu() {
	formats := []string{config.FormatWAV, config.FormatAAC}
	labels := map[string]string{
		config.FormatWAV: "WAV (16-bit PCM)",
		config.FormatAAC: "AAC (M4A, 192 kbps)",
	}
	formatItems := make(map[string]*systray.MenuItem)

	aacAvailable := u.enc.Available()
	if !aacAvailable && u.cfg.Output.Format == config.FormatAAC {
		u.cfg.Output.Format = config.FormatWAV
	}

	for _, format := range formats {
		item := u.mFormat.AddSubMenuItem(labels[format], "")
		if format == u.cfg.Output.Format {
			item.Check()
		}
		if format == config.FormatAAC && !aacAvailable {
			item.Disable()
		}
		formatItems[format] = item

		go func(f string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				for ff, itm := range formatItems {
					if ff != f {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.cfg.Output.Format = f
				u.cfg.Save()
				u.log.Info().Str("format", f).Msg("Changed output format")
			}
		}(format, item)
	}
}

func (u *UI) toggleCopyPath() {
	u.cfg.Output.CopyPath = !u.cfg.Output.CopyPath
	if u.cfg.Output.CopyPath {
		u.mCopyPath.Check()
	} else {
		u.mCopyPath.Uncheck()
	}
	u.cfg.Save()
}

func (u *UI) onExit() {
	// Cleanup
}

// updateStatus sets the tray title: state emoji plus elapsed time and a
// level meter while recording
func (u *UI) updateStatus() {
	switch u.sess.State() {
	case session.Recording:
		systray.SetTitle(fmt.Sprintf("🎤 🔴 %s %s", formatElapsed(u.sess.Elapsed()), levelMeter(u.sess.Level(), 8)))
	case session.Flushing:
		systray.SetTitle("🎤 🟡")
	default:
		systray.SetTitle("🎤 🟢")
	}
}

// formatElapsed renders a duration as mm:ss
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// levelMeter renders an RMS level as a bar of filled and empty cells.
// The level is scaled the way the original meter was: full scale is
// reached at one tenth of digital full scale, which suits speech.
func levelMeter(level float64, cells int) string {
	scaled := level * 10
	if scaled > 1 {
		scaled = 1
	}
	filled := int(scaled * float64(cells))
	return strings.Repeat("▮", filled) + strings.Repeat("▯", cells-filled)
}
